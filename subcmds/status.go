// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/server"
	"github.com/bvk/snipebot/subcmds/cmdutil"
)

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Synopsis() string {
	return "Status prints a summary of the running daemon"
}

func (c *Status) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	data, err := c.ClientFlags.Get(ctx, "/status", nil)
	if err != nil {
		return err
	}
	status := new(server.Status)
	if err := json.Unmarshal(data, status); err != nil {
		return fmt.Errorf("could not unmarshal status response: %w", err)
	}

	fmt.Printf("Uptime: %s\n", status.Uptime)
	fmt.Printf("Dry Run: %t\n", status.DryRun)
	fmt.Printf("Last Processed Block: %d\n", status.LastProcessedBlock)
	fmt.Printf("Scanner: %s\n", status.ScannerState)
	fmt.Printf("Tracker: %s\n", status.TrackerState)
	fmt.Printf("Open Positions: %d\n", status.OpenPositions)
	fmt.Printf("Num Patterns: %d\n", status.NumPatterns)

	if s := status.Safety; s != nil {
		fmt.Println()
		fmt.Printf("Emergency Stop: %t\n", s.EmergencyStop)
		fmt.Printf("Trades This Hour: %d\n", s.TradesThisHour)
		fmt.Printf("Trades This Day: %d\n", s.TradesThisDay)
	}

	if status.MemoryRSS > 0 {
		fmt.Println()
		fmt.Printf("Memory RSS: %d\n", status.MemoryRSS)
		fmt.Printf("CPU Percent: %.2f\n", status.CPUPercent)
	}
	return nil
}

// Copyright (c) 2025 BVK Chaitanya

package safety

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/subcmds/cmdutil"
)

type Resume struct {
	cmdutil.ClientFlags
}

func (c *Resume) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("resume", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Resume) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	data, err := c.ClientFlags.Post(ctx, "/safety/resume", nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s", data)
	return nil
}

func (c *Resume) Synopsis() string {
	return "Clears the emergency stop and resumes trading"
}

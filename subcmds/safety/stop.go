// Copyright (c) 2025 BVK Chaitanya

package safety

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/subcmds/cmdutil"
)

type Stop struct {
	cmdutil.ClientFlags
}

func (c *Stop) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("stop", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Stop) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	data, err := c.ClientFlags.Post(ctx, "/safety/stop", nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s", data)
	return nil
}

func (c *Stop) Synopsis() string {
	return "Activates the emergency stop so no new trades are dispatched"
}

// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/subcmds/cmdutil"
)

type Reload struct {
	cmdutil.ClientFlags
}

func (c *Reload) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("reload", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Reload) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	data, err := c.ClientFlags.Post(ctx, "/patterns/reload", nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s", data)
	return nil
}

func (c *Reload) Synopsis() string {
	return "Asks the daemon to reload its pattern file"
}

// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/pattern"
)

type List struct {
	file string
}

func (c *List) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	fset.StringVar(&c.file, "file", "", "path to the pattern file")
	return fset, cli.CmdFunc(c.run)
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if len(c.file) == 0 {
		return fmt.Errorf("flag -file is required")
	}

	patterns, err := pattern.LoadFile(c.file)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "ID\tName\tEnabled\tPriority\tGasPrice\tGasLimit\tValue\tBuyAmount\t\n")
	for _, p := range patterns {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\t%s\t%s\t\n", p.ID, p.Name, p.Enabled, p.Priority, p.GasPrice.String(), p.GasLimit.String(), p.TxValue.String(), p.Trading.BuyAmount.String())
	}
	return tw.Flush()
}

func (c *List) Synopsis() string {
	return "Prints the patterns in a pattern file"
}

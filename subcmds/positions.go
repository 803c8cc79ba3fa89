// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/subcmds/cmdutil"
)

type Positions struct {
	cmdutil.ClientFlags

	state string
}

func (c *Positions) Synopsis() string {
	return "Positions prints the tracked token positions"
}

func (c *Positions) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("positions", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.state, "state", "", "when non-empty only positions in this state are printed")
	return fset, cli.CmdFunc(c.run)
}

func (c *Positions) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	data, err := c.ClientFlags.Get(ctx, "/positions", nil)
	if err != nil {
		return err
	}
	var positions []*gobs.PositionState
	if err := json.Unmarshal(data, &positions); err != nil {
		return fmt.Errorf("could not unmarshal positions response: %w", err)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].BuyTime.Before(positions[j].BuyTime)
	})

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "UID\tToken\tState\tBuyTime\tBNBSpent\tTokenAmount\tBuyPrice\tCurPrice\tChange\tMaxChange\tCopiedFrom\t\n")
	for _, p := range positions {
		if len(c.state) != 0 && p.State != c.state {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f%%\t%.2f%%\t%s\t\n", p.UID, p.TokenAddress, p.State, p.BuyTime.Format("2006-01-02T15:04:05"), p.BNBSpent.StringFixed(6), p.TokenAmount.StringFixed(3), p.BuyPriceBNB.String(), p.CurrentPriceBNB.String(), p.PriceChangePct, p.MaxChangePct, p.CopiedFrom)
	}
	return tw.Flush()
}

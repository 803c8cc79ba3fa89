// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/snipebot/classify"
	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/pattern"
	"github.com/shopspring/decimal"
)

type Check struct {
	file string

	gasPriceGwei string
	gasLimit     uint64
	value        string
}

func (c *Check) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("check", flag.ContinueOnError)
	fset.StringVar(&c.file, "file", "", "path to the pattern file")
	fset.StringVar(&c.gasPriceGwei, "gas-price", "", "transaction gas price in gwei")
	fset.Uint64Var(&c.gasLimit, "gas-limit", 0, "transaction gas limit")
	fset.StringVar(&c.value, "value", "0", "transaction value in BNB")
	return fset, cli.CmdFunc(c.run)
}

// run evaluates a synthetic token creation against the pattern file, which
// helps tune ranges offline before the daemon picks them up.
func (c *Check) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if len(c.file) == 0 {
		return fmt.Errorf("flag -file is required")
	}
	gasPrice, err := decimal.NewFromString(c.gasPriceGwei)
	if err != nil {
		return fmt.Errorf("invalid -gas-price value %q: %w", c.gasPriceGwei, err)
	}
	value, err := decimal.NewFromString(c.value)
	if err != nil {
		return fmt.Errorf("invalid -value value %q: %w", c.value, err)
	}

	patterns, err := pattern.LoadFile(c.file)
	if err != nil {
		return err
	}

	ev := &classify.Event{
		Kind:         classify.TokenCreated,
		GasPriceGwei: gasPrice,
		GasLimit:     c.gasLimit,
		BNBValue:     value,
		Timestamp:    time.Now(),
	}
	result, reason := pattern.Match(patterns, ev)
	if result == nil {
		fmt.Printf("no match: %s\n", reason)
		return nil
	}
	fmt.Printf("matched %s with buy amount %s BNB\n", result.Pattern, result.Pattern.Trading.BuyAmount)
	return nil
}

func (c *Check) Synopsis() string {
	return "Evaluates gas and value parameters against a pattern file"
}

// Copyright (c) 2025 BVK Chaitanya

// Package pattern implements the structural transaction signatures the
// scanner reacts to and the binary matching algorithm over them.
package pattern

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradingParams describes the automated trade a matched pattern triggers.
type TradingParams struct {
	// BuyAmount is the BNB amount spent on a matched token creation.
	BuyAmount decimal.Decimal `json:"buyAmount"`

	// HoldSeconds, MaxSlippagePct, StopLossPct and TakeProfitPct are
	// validated and recorded for the trade executor and offline analytics.
	// Position lifecycle here is driven by the tracker's trigger thresholds.
	HoldSeconds    int     `json:"holdSeconds"`
	MaxSlippagePct float64 `json:"maxSlippagePct"`
	StopLossPct    float64 `json:"stopLossPct"`
	TakeProfitPct  float64 `json:"takeProfitPct"`
}

func (p *TradingParams) Check() error {
	if !p.BuyAmount.IsPositive() {
		return fmt.Errorf("buy amount %s must be positive", p.BuyAmount)
	}
	if p.HoldSeconds < 0 {
		return fmt.Errorf("hold seconds cannot be negative")
	}
	if p.MaxSlippagePct < 0 || p.StopLossPct < 0 || p.TakeProfitPct < 0 {
		return fmt.Errorf("percentage parameters cannot be negative")
	}
	return nil
}

// Pattern is a named, prioritized rule describing the gas/value signature of
// transactions worth reacting to. Patterns are immutable once loaded for a
// scan cycle; reloads swap the whole list atomically between cycles.
type Pattern struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	// Priority orders evaluation; lower values are evaluated first. Ties are
	// broken by declaration order in the pattern file.
	Priority int `json:"priority"`

	// GasPrice bounds the transaction gas price in gwei.
	GasPrice Range `json:"gasPriceRange"`

	// GasLimit bounds the transaction gas limit.
	GasLimit Range `json:"gasLimitRange"`

	// TxValue bounds the transaction value in BNB.
	TxValue Range `json:"valueFilter"`

	Trading TradingParams `json:"tradingParams"`

	RequiredConfirmations int `json:"requiredConfirmations"`
}

func (p *Pattern) Check() error {
	if len(p.ID) == 0 {
		return fmt.Errorf("pattern id cannot be empty")
	}
	if err := p.GasPrice.Check(); err != nil {
		return fmt.Errorf("pattern %q gas price range is invalid: %w", p.ID, err)
	}
	if err := p.GasLimit.Check(); err != nil {
		return fmt.Errorf("pattern %q gas limit range is invalid: %w", p.ID, err)
	}
	if err := p.TxValue.Check(); err != nil {
		return fmt.Errorf("pattern %q value filter is invalid: %w", p.ID, err)
	}
	if err := p.Trading.Check(); err != nil {
		return fmt.Errorf("pattern %q trading params are invalid: %w", p.ID, err)
	}
	if p.RequiredConfirmations < 0 {
		return fmt.Errorf("pattern %q required confirmations cannot be negative", p.ID)
	}
	return nil
}

func (p *Pattern) String() string {
	return "pattern:" + p.ID
}

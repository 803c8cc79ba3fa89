// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"fmt"

	"github.com/bvk/snipebot/classify"
	"github.com/shopspring/decimal"
)

// Result is a successful pattern match. Confidence is binary: it is exactly
// 1.0 when every constraint holds and matches are never produced otherwise.
// There is no weighted scoring; a probabilistic score would make the
// financial risk model unverifiable.
type Result struct {
	Pattern *Pattern

	Confidence float64

	Event *classify.Event
}

// Match evaluates the event against the patterns in priority order and
// returns the first pattern whose every constraint is satisfied. When no
// pattern matches, the returned reason identifies the first failing
// constraint (checked gas price, then gas limit, then transaction value) of
// the first enabled pattern, to support offline pattern tuning.
//
// The patterns slice must already be ordered by priority with declaration
// order breaking ties; Store.Patterns returns such a slice.
func Match(patterns []*Pattern, ev *classify.Event) (*Result, string) {
	reason := "no enabled patterns"
	gasLimit := decimal.NewFromInt(int64(ev.GasLimit))

	first := true
	for _, p := range patterns {
		if !p.Enabled {
			continue
		}
		why := explain(p, ev, gasLimit)
		if why == "" {
			return &Result{Pattern: p, Confidence: 1.0, Event: ev}, ""
		}
		if first {
			reason, first = why, false
		}
	}
	return nil, reason
}

// explain returns an empty string when the event satisfies every constraint
// of the pattern, or a human-readable description of the first violated
// constraint.
func explain(p *Pattern, ev *classify.Event, gasLimit decimal.Decimal) string {
	if !p.GasPrice.In(ev.GasPriceGwei) {
		return fmt.Sprintf("%s: gas price %s gwei outside range %s", p.ID, ev.GasPriceGwei, p.GasPrice.String())
	}
	if !p.GasLimit.In(gasLimit) {
		return fmt.Sprintf("%s: gas limit %s outside range %s", p.ID, gasLimit, p.GasLimit.String())
	}
	if !p.TxValue.In(ev.BNBValue) {
		return fmt.Sprintf("%s: transaction value %s outside range %s", p.ID, ev.BNBValue, p.TxValue.String())
	}
	return ""
}

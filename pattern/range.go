// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Range is a closed numeric interval [Min, Max]. Pattern constraints are
// always closed so that a tuned boundary value matches its own pattern.
type Range struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

func (r *Range) Check() error {
	if r.Min.IsNegative() {
		return fmt.Errorf("range min %s cannot be negative", r.Min)
	}
	if r.Min.GreaterThan(r.Max) {
		return fmt.Errorf("range min %s cannot be greater than max %s", r.Min, r.Max)
	}
	return nil
}

func (r *Range) In(value decimal.Decimal) bool {
	return value.GreaterThanOrEqual(r.Min) && value.LessThanOrEqual(r.Max)
}

func (r *Range) String() string {
	return fmt.Sprintf("[%s,%s]", r.Min, r.Max)
}

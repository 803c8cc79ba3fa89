// Copyright (c) 2025 BVK Chaitanya

package trade

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bvk/snipebot/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulator is an executor for dry runs. Buys and sells settle instantly at
// the oracle price and no transaction reaches the chain.
type Simulator struct {
	oracle oracle.Oracle
}

var _ Executor = &Simulator{}

func NewSimulator(o oracle.Oracle) *Simulator {
	return &Simulator{oracle: o}
}

func (s *Simulator) Buy(ctx context.Context, token common.Address, bnbAmount decimal.Decimal, ownerID string) (*Result, error) {
	if !bnbAmount.IsPositive() {
		return nil, fmt.Errorf("buy amount must be positive: %w", os.ErrInvalid)
	}
	price, err := s.oracle.GetCurrentPrice(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("could not fetch price for simulated buy: %w", err)
	}
	if price.PriceBNB.IsZero() {
		return &Result{Error: "token has no price"}, nil
	}
	result := &Result{
		Success:     true,
		TxHash:      "dry-run-" + uuid.NewString(),
		TokenAmount: bnbAmount.Div(price.PriceBNB),
	}
	slog.Info("simulated a buy", "token", token, "bnb", bnbAmount, "tokens", result.TokenAmount, "owner", ownerID)
	return result, nil
}

func (s *Simulator) Sell(ctx context.Context, token common.Address, percentage decimal.Decimal, ownerID string) (*Result, error) {
	if !percentage.IsPositive() || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("sell percentage must be in (0, 100]: %w", os.ErrInvalid)
	}
	result := &Result{
		Success: true,
		TxHash:  "dry-run-" + uuid.NewString(),
	}
	slog.Info("simulated a sell", "token", token, "percentage", percentage, "owner", ownerID)
	return result, nil
}

// Copyright (c) 2025 BVK Chaitanya

// Package trade defines the trade executor boundary. The core never
// constructs swap calldata; settlement is an opaque, possibly slow, possibly
// failing external operation.
package trade

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Result is the executor's answer for one buy or sell request. Success=false
// with a non-empty Error is a trade failure, not a transport error.
type Result struct {
	Success bool `json:"success"`

	TxHash string `json:"txHash,omitempty"`

	// TokenAmount is the token quantity bought or sold, when the executor
	// reports it.
	TokenAmount decimal.Decimal `json:"tokenAmount,omitempty"`

	Error string `json:"error,omitempty"`
}

// Executor performs the actual swaps. Calls may block on I/O; callers gate
// them with the safety governor immediately prior and never retry a call
// with a different amount than originally requested.
type Executor interface {
	// Buy spends the given BNB amount on the token for the given owner.
	Buy(ctx context.Context, token common.Address, bnbAmount decimal.Decimal, ownerID string) (*Result, error)

	// Sell liquidates the given percentage (0-100] of the owner's token
	// position.
	Sell(ctx context.Context, token common.Address, percentage decimal.Decimal, ownerID string) (*Result, error)
}

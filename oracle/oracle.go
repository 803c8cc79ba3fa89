// Copyright (c) 2026 BVK Chaitanya

// Package oracle resolves token prices against the originating venue and
// the wider market. Prices are quoted in BNB and USD.
package oracle

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Price holds a price observation for a token. HasLiquidity is false when
// the token's liquidity has migrated away from the originating venue, in
// which case the prices reflect the secondary market.
type Price struct {
	PriceBNB decimal.Decimal
	PriceUSD decimal.Decimal

	HasLiquidity bool

	At time.Time
}

// Oracle is implemented by price sources.
type Oracle interface {
	GetCurrentPrice(ctx context.Context, token common.Address) (*Price, error)
}

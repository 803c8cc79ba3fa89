// Copyright (c) 2025 BVK Chaitanya

package trade

import (
	"context"
	"fmt"

	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/syncmap"
	"github.com/ethereum/go-ethereum/common"
)

// Venue is the closed set of markets a token can trade on. A token starts on
// its originating bonding-curve contract and moves to a secondary market
// (DEX) after migration.
type Venue string

const (
	OriginatingVenue Venue = "ORIGINATING"
	SecondaryMarket  Venue = "SECONDARY"
)

// VenueResolver decides once per token which venue serves it. The decision
// is cached; a token that has migrated never moves back.
type VenueResolver struct {
	oracle oracle.Oracle

	venueMap syncmap.Map[common.Address, Venue]
}

func NewVenueResolver(o oracle.Oracle) *VenueResolver {
	return &VenueResolver{oracle: o}
}

// Resolve returns the venue for the token. A token still carrying liquidity
// on its originating venue trades there; one that the oracle reports as
// migrated trades on the secondary market.
func (r *VenueResolver) Resolve(ctx context.Context, token common.Address) (Venue, error) {
	if v, ok := r.venueMap.Load(token); ok {
		return v, nil
	}

	price, err := r.oracle.GetCurrentPrice(ctx, token)
	if err != nil {
		return "", fmt.Errorf("could not run migration check for %s: %w", token, err)
	}

	venue := OriginatingVenue
	if !price.HasLiquidity {
		venue = SecondaryMarket
	}
	v, _ := r.venueMap.LoadOrStore(token, venue)
	return v, nil
}

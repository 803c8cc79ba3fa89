// Copyright (c) 2025 BVK Chaitanya

package trade

import (
	"context"
	"testing"
	"time"

	"github.com/bvk/snipebot/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type fakeOracle struct {
	price oracle.Price
	calls int
}

func (f *fakeOracle) GetCurrentPrice(ctx context.Context, token common.Address) (*oracle.Price, error) {
	f.calls++
	p := f.price
	p.At = time.Now()
	return &p, nil
}

func TestVenueResolve(t *testing.T) {
	ctx := context.Background()
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")

	fake := &fakeOracle{
		price: oracle.Price{
			PriceBNB:     decimal.RequireFromString("0.0000001"),
			HasLiquidity: true,
		},
	}
	r := NewVenueResolver(fake)

	v, err := r.Resolve(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if v != OriginatingVenue {
		t.Fatalf("want %s, got %s", OriginatingVenue, v)
	}

	// Liquidity migrating away later must not flip the cached decision.
	fake.price.HasLiquidity = false
	v, err = r.Resolve(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if v != OriginatingVenue {
		t.Fatalf("want %s, got %s", OriginatingVenue, v)
	}
	if fake.calls != 1 {
		t.Fatalf("want one oracle call, got %d", fake.calls)
	}

	migrated := common.HexToAddress("0x2222222222222222222222222222222222222222")
	v, err = r.Resolve(ctx, migrated)
	if err != nil {
		t.Fatal(err)
	}
	if v != SecondaryMarket {
		t.Fatalf("want %s, got %s", SecondaryMarket, v)
	}
}

func TestSimulatorBuy(t *testing.T) {
	ctx := context.Background()
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")

	fake := &fakeOracle{
		price: oracle.Price{
			PriceBNB:     decimal.RequireFromString("0.0001"),
			HasLiquidity: true,
		},
	}
	s := NewSimulator(fake)

	result, err := s.Buy(ctx, token, decimal.RequireFromString("0.5"), "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("simulated buy has failed: %s", result.Error)
	}
	if want := decimal.NewFromInt(5000); !result.TokenAmount.Equal(want) {
		t.Fatalf("want %s tokens, got %s", want, result.TokenAmount)
	}

	if _, err := s.Buy(ctx, token, decimal.Zero, "owner-1"); err == nil {
		t.Fatalf("zero amount buy must fail")
	}
}

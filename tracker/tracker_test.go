// Copyright (c) 2025 BVK Chaitanya

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/metrics"
	"github.com/bvk/snipebot/notify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/trade"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fakeOracle struct {
	price decimal.Decimal
}

func (f *fakeOracle) GetCurrentPrice(ctx context.Context, token common.Address) (*oracle.Price, error) {
	return &oracle.Price{
		PriceBNB:     f.price,
		PriceUSD:     f.price.Mul(decimal.NewFromInt(600)),
		HasLiquidity: true,
		At:           time.Now(),
	}, nil
}

type fakeExecutor struct {
	fail  bool
	sells []decimal.Decimal
}

func (f *fakeExecutor) Buy(ctx context.Context, token common.Address, bnbAmount decimal.Decimal, ownerID string) (*trade.Result, error) {
	return &trade.Result{Success: true, TxHash: "0xbuy"}, nil
}

func (f *fakeExecutor) Sell(ctx context.Context, token common.Address, percentage decimal.Decimal, ownerID string) (*trade.Result, error) {
	if f.fail {
		return &trade.Result{Success: false, Error: "slippage exceeded"}, nil
	}
	f.sells = append(f.sells, percentage)
	return &trade.Result{Success: true, TxHash: "0xsell"}, nil
}

func newTestTracker(t *testing.T, o *fakeOracle, ex *fakeExecutor, g *safety.Governor) (*Tracker, *time.Time) {
	t.Helper()
	ctx := context.Background()
	if g == nil {
		var err error
		g, err = safety.New(safety.Limits{MaxTradesPerHour: 100, MaxTradesPerDay: 1000})
		if err != nil {
			t.Fatal(err)
		}
	}
	tr, err := New(ctx, kvmemdb.New(), o, ex, g, notify.LogNotifier{}, metrics.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	tr.timeNow = func() time.Time { return now }
	return tr, &now
}

func addTestPosition(t *testing.T, tr *Tracker, buyTime time.Time) string {
	t.Helper()
	p := &gobs.PositionState{
		TokenAddress: testToken.Hex(),
		OwnerID:      "owner-1",
		BuyPriceBNB:  decimal.RequireFromString("0.000001"),
		BNBSpent:     decimal.RequireFromString("0.1"),
		TokenAmount:  decimal.NewFromInt(100000),
		BuyTime:      buyTime,
	}
	if err := tr.Add(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p.UID
}

func position(t *testing.T, tr *Tracker, uid string) *gobs.PositionState {
	t.Helper()
	for _, p := range tr.Positions() {
		if p.UID == uid {
			return p
		}
	}
	return nil
}

func TestTriggerScenario(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	tr, now := newTestTracker(t, o, ex, nil)

	base := *now
	uid := addTestPosition(t, tr, base)

	// +10% at 8 seconds sells half.
	*now = base.Add(8 * time.Second)
	o.price = decimal.RequireFromString("0.0000011")
	tr.Tick(ctx)

	p := position(t, tr, uid)
	if p == nil {
		t.Fatalf("position has disappeared")
	}
	if p.State != StatePartialSold {
		t.Fatalf("want %s, got %s", StatePartialSold, p.State)
	}
	if !p.PartialTriggerDone {
		t.Fatalf("partial trigger must be consumed")
	}
	if want := decimal.NewFromInt(50000); !p.TokenAmount.Equal(want) {
		t.Fatalf("want %s tokens held, got %s", want, p.TokenAmount)
	}

	// +60% at 18 seconds closes the rest.
	*now = base.Add(18 * time.Second)
	o.price = decimal.RequireFromString("0.0000016")
	tr.Tick(ctx)

	if p := position(t, tr, uid); p != nil {
		t.Fatalf("closed position must leave the registry, got state %s", p.State)
	}
	if len(ex.sells) != 2 {
		t.Fatalf("want 2 sells, got %d", len(ex.sells))
	}
	if !ex.sells[0].Equal(decimal.NewFromInt(50)) || !ex.sells[1].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("want sells [50 100], got %v", ex.sells)
	}
}

func TestPartialTriggerFiresOnce(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	tr, now := newTestTracker(t, o, ex, nil)

	base := *now
	addTestPosition(t, tr, base)

	*now = base.Add(2 * time.Second)
	o.price = decimal.RequireFromString("0.00000112")
	tr.Tick(ctx)

	// Price retraces and re-climbs above the threshold inside the window.
	*now = base.Add(4 * time.Second)
	o.price = decimal.RequireFromString("0.00000105")
	tr.Tick(ctx)

	*now = base.Add(6 * time.Second)
	o.price = decimal.RequireFromString("0.00000115")
	tr.Tick(ctx)

	if len(ex.sells) != 1 {
		t.Fatalf("partial trigger must fire at most once, got %d sells", len(ex.sells))
	}
}

func TestPartialTriggerWindowExpired(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	tr, now := newTestTracker(t, o, ex, nil)

	base := *now
	uid := addTestPosition(t, tr, base)

	*now = base.Add(11 * time.Second)
	o.price = decimal.RequireFromString("0.00000112")
	tr.Tick(ctx)

	p := position(t, tr, uid)
	if p.State != StateOpen {
		t.Fatalf("trigger outside the window must not fire, got state %s", p.State)
	}
	if len(ex.sells) != 0 {
		t.Fatalf("want no sells, got %d", len(ex.sells))
	}
}

func TestFailedSellKeepsState(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := &fakeExecutor{fail: true}
	tr, now := newTestTracker(t, o, ex, nil)

	base := *now
	uid := addTestPosition(t, tr, base)

	*now = base.Add(5 * time.Second)
	o.price = decimal.RequireFromString("0.00000112")
	tr.Tick(ctx)

	p := position(t, tr, uid)
	if p.State != StateOpen || p.PartialTriggerDone {
		t.Fatalf("failed sell must not advance position state, got %s", p.State)
	}

	// Executor recovery lets the next tick retry inside the window.
	ex.fail = false
	*now = base.Add(7 * time.Second)
	tr.Tick(ctx)

	p = position(t, tr, uid)
	if p.State != StatePartialSold {
		t.Fatalf("want %s after executor recovery, got %s", StatePartialSold, p.State)
	}
}

func TestSafetyBlockedSell(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	g, err := safety.New(safety.Limits{MaxTradesPerHour: 1, MaxTradesPerDay: 10})
	if err != nil {
		t.Fatal(err)
	}
	g.Record()
	tr, now := newTestTracker(t, o, ex, g)

	base := *now
	uid := addTestPosition(t, tr, base)

	*now = base.Add(5 * time.Second)
	o.price = decimal.RequireFromString("0.00000112")
	tr.Tick(ctx)

	p := position(t, tr, uid)
	if p.State != StateOpen {
		t.Fatalf("blocked trade must not advance position state, got %s", p.State)
	}
	if len(ex.sells) != 0 {
		t.Fatalf("want no sells while blocked, got %d", len(ex.sells))
	}
}

func TestCopyExit(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	tr, now := newTestTracker(t, o, ex, nil)

	target := common.HexToAddress("0x2222222222222222222222222222222222222222")
	p := &gobs.PositionState{
		TokenAddress: testToken.Hex(),
		OwnerID:      "owner-1",
		CopiedFrom:   target.Hex(),
		BuyPriceBNB:  decimal.RequireFromString("0.000001"),
		BNBSpent:     decimal.RequireFromString("0.1"),
		TokenAmount:  decimal.NewFromInt(100000),
		BuyTime:      *now,
	}
	if err := tr.Add(ctx, p); err != nil {
		t.Fatal(err)
	}

	tr.HandleTargetSell(ctx, target, testToken)

	if got := position(t, tr, p.UID); got != nil {
		t.Fatalf("copied position must close when the target sells, got state %s", got.State)
	}
	if len(ex.sells) != 1 || !ex.sells[0].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("want one full sell, got %v", ex.sells)
	}
}

func TestRestorePositions(t *testing.T) {
	ctx := context.Background()
	o := &fakeOracle{price: decimal.RequireFromString("0.000001")}
	ex := new(fakeExecutor)
	db := kvmemdb.New()

	g, err := safety.New(safety.Limits{MaxTradesPerHour: 100, MaxTradesPerDay: 1000})
	if err != nil {
		t.Fatal(err)
	}
	tr, err := New(ctx, db, o, ex, g, notify.LogNotifier{}, metrics.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	uid := addTestPosition(t, tr, time.Now())

	tr2, err := New(ctx, db, o, ex, g, notify.LogNotifier{}, metrics.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if p := position(t, tr2, uid); p == nil {
		t.Fatalf("open position must be restored from the database")
	}
}

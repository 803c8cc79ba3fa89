// Copyright (c) 2025 BVK Chaitanya

// Package tracker maintains the registry of open positions and runs the
// price-trigger state machine over them.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/kvutil"
	"github.com/bvk/snipebot/metrics"
	"github.com/bvk/snipebot/notify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/trade"
	"github.com/bvkgo/kv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position states. A position starts OPEN, may pass through PARTIAL_SOLD
// and ends CLOSED. CLOSED is terminal.
const (
	StateOpen        = "OPEN"
	StatePartialSold = "PARTIAL_SOLD"
	StateClosed      = "CLOSED"
)

const (
	TriggerPartial    = "partial"
	TriggerClose      = "close"
	TriggerCopyExit   = "copy-exit"
	TriggerZeroAmount = "zero-amount"
)

const Keyspace = "/positions/"

type Options struct {
	// UpdateInterval is the refresh tick interval.
	UpdateInterval time.Duration

	// PartialTriggerPct and PartialTriggerWindow define the early partial
	// sell. The trigger fires at most once per position.
	PartialTriggerPct    float64
	PartialTriggerWindow time.Duration

	// PartialSellPct is the portion of the held amount sold by the partial
	// trigger.
	PartialSellPct float64

	// CloseTriggerPct and CloseTriggerWindow define the full exit.
	CloseTriggerPct    float64
	CloseTriggerWindow time.Duration

	// DryRun skips the safety governor because no real trade is dispatched.
	DryRun bool
}

func (v *Options) setDefaults() {
	if v.UpdateInterval == 0 {
		v.UpdateInterval = 2 * time.Second
	}
	if v.PartialTriggerPct == 0 {
		v.PartialTriggerPct = 10
	}
	if v.PartialTriggerWindow == 0 {
		v.PartialTriggerWindow = 10 * time.Second
	}
	if v.PartialSellPct == 0 {
		v.PartialSellPct = 50
	}
	if v.CloseTriggerPct == 0 {
		v.CloseTriggerPct = 50
	}
	if v.CloseTriggerWindow == 0 {
		v.CloseTriggerWindow = 20 * time.Second
	}
}

func (v *Options) Check() error {
	if v.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive")
	}
	if v.PartialTriggerPct <= 0 || v.CloseTriggerPct <= 0 {
		return fmt.Errorf("trigger percentages must be positive")
	}
	if v.PartialTriggerWindow <= 0 || v.CloseTriggerWindow <= 0 {
		return fmt.Errorf("trigger windows must be positive")
	}
	if v.PartialSellPct <= 0 || v.PartialSellPct > 100 {
		return fmt.Errorf("partial sell percentage must be in (0, 100]")
	}
	return nil
}

// Tracker owns the position registry. Positions are only mutated here; the
// scanner and other components insert and remove through Tracker methods.
type Tracker struct {
	opts Options

	db       kv.Database
	oracle   oracle.Oracle
	executor trade.Executor
	governor *safety.Governor
	notifier notify.Notifier
	mtr      *metrics.Metrics

	// timeNow is replaced in tests.
	timeNow func() time.Time

	mu          sync.Mutex
	positionMap map[string]*gobs.PositionState
}

func New(ctx context.Context, db kv.Database, o oracle.Oracle, ex trade.Executor, g *safety.Governor, n notify.Notifier, mtr *metrics.Metrics, opts *Options) (*Tracker, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	t := &Tracker{
		opts:        *opts,
		db:          db,
		oracle:      o,
		executor:    ex,
		governor:    g,
		notifier:    n,
		mtr:         mtr,
		timeNow:     time.Now,
		positionMap: make(map[string]*gobs.PositionState),
	}
	if err := t.loadPositions(ctx); err != nil {
		return nil, fmt.Errorf("could not load saved positions: %w", err)
	}
	return t, nil
}

func (t *Tracker) loadPositions(ctx context.Context) error {
	begin, end := kvutil.PathRange(Keyspace)
	err := kvutil.AscendDB(ctx, t.db, begin, end, func(_ context.Context, _ kv.Reader, _ string, p *gobs.PositionState) error {
		if p.State != StateClosed {
			t.positionMap[p.UID] = p
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.mtr.OpenPositions.Set(float64(len(t.positionMap)))
	if n := len(t.positionMap); n > 0 {
		slog.Info("restored positions from the database", "count", n)
	}
	return nil
}

func positionKey(uid string) string {
	return path.Join(Keyspace, uid)
}

// Add inserts a new position after a completed buy. Missing fields are
// initialized and the position is saved before it becomes visible to the
// refresh loop.
func (t *Tracker) Add(ctx context.Context, p *gobs.PositionState) error {
	if p.TokenAddress == "" || p.OwnerID == "" {
		return fmt.Errorf("position token address and owner are required: %w", os.ErrInvalid)
	}
	if !p.BuyPriceBNB.IsPositive() || !p.TokenAmount.IsPositive() {
		return fmt.Errorf("position buy price and token amount must be positive: %w", os.ErrInvalid)
	}
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	if p.BuyTime.IsZero() {
		p.BuyTime = t.timeNow()
	}
	p.State = StateOpen
	p.CurrentPriceBNB = p.BuyPriceBNB
	p.CurrentPriceUSD = p.BuyPriceUSD
	p.MaxPriceBNB = p.BuyPriceBNB
	p.LastUpdated = p.BuyTime

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positionMap[p.UID]; ok {
		return fmt.Errorf("position %s already exists: %w", p.UID, os.ErrExist)
	}
	if err := kvutil.SetDB(ctx, t.db, positionKey(p.UID), p); err != nil {
		return err
	}
	t.positionMap[p.UID] = p
	t.mtr.OpenPositions.Set(float64(len(t.positionMap)))
	slog.Info("tracking a new position", "uid", p.UID, "token", p.TokenAddress, "owner", p.OwnerID, "buyPrice", p.BuyPriceBNB)
	return nil
}

// Remove stops tracking a position on the owner's request. The saved state
// is kept with the position marked closed.
func (t *Tracker) Remove(ctx context.Context, uid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.positionMap[uid]
	if !ok {
		return fmt.Errorf("position %s is not tracked: %w", uid, os.ErrNotExist)
	}
	p.State = StateClosed
	p.LastUpdated = t.timeNow()
	if err := kvutil.SetDB(ctx, t.db, positionKey(uid), p); err != nil {
		return err
	}
	delete(t.positionMap, uid)
	t.mtr.OpenPositions.Set(float64(len(t.positionMap)))
	return nil
}

// Positions returns a snapshot of all tracked positions.
func (t *Tracker) Positions() []*gobs.PositionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	vs := make([]*gobs.PositionState, 0, len(t.positionMap))
	for _, p := range t.positionMap {
		c := *p
		vs = append(vs, &c)
	}
	return vs
}

// Run refreshes every tracked position on a fixed interval until the
// context is canceled. An in-flight tick always completes before Run
// returns.
func (t *Tracker) Run(ctx context.Context) error {
	timeout := time.NewTicker(t.opts.UpdateInterval)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timeout.C:
			t.Tick(ctx)
		}
	}
}

// Tick runs one refresh pass over every tracked position. Ticks for
// different tokens may interleave freely across passes; within one position
// updates are strictly ordered because a single loop runs them.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.Lock()
	uids := make([]string, 0, len(t.positionMap))
	for uid := range t.positionMap {
		uids = append(uids, uid)
	}
	t.mu.Unlock()

	for _, uid := range uids {
		if ctx.Err() != nil {
			return
		}
		t.refresh(ctx, uid)
	}
}

func (t *Tracker) refresh(ctx context.Context, uid string) {
	t.mu.Lock()
	p, ok := t.positionMap[uid]
	if !ok || p.State == StateClosed {
		t.mu.Unlock()
		return
	}
	token := common.HexToAddress(p.TokenAddress)
	t.mu.Unlock()

	// Oracle failures leave the position tracked; pricing retries on the
	// next tick.
	price, err := t.oracle.GetCurrentPrice(ctx, token)
	if err != nil {
		slog.Warn("could not refresh position price (will retry)", "uid", uid, "token", token, "err", err)
		return
	}

	t.mu.Lock()
	p, ok = t.positionMap[uid]
	if !ok || p.State == StateClosed {
		t.mu.Unlock()
		return
	}
	now := t.timeNow()
	p.CurrentPriceBNB = price.PriceBNB
	p.CurrentPriceUSD = price.PriceUSD
	p.PriceChangePct = changePct(p.BuyPriceBNB, price.PriceBNB)
	if price.PriceBNB.GreaterThan(p.MaxPriceBNB) {
		p.MaxPriceBNB = price.PriceBNB
	}
	if p.PriceChangePct > p.MaxChangePct {
		p.MaxChangePct = p.PriceChangePct
	}
	p.LastUpdated = now

	age := now.Sub(p.BuyTime)
	closeDue := p.PriceChangePct >= t.opts.CloseTriggerPct && age <= t.opts.CloseTriggerWindow
	partialDue := p.State == StateOpen && !p.PartialTriggerDone &&
		p.PriceChangePct >= t.opts.PartialTriggerPct && age <= t.opts.PartialTriggerWindow
	snapshot := *p
	t.mu.Unlock()

	if err := kvutil.SetDB(ctx, t.db, positionKey(uid), &snapshot); err != nil {
		slog.Warn("could not save refreshed position (will retry)", "uid", uid, "err", err)
	}

	switch {
	case !snapshot.TokenAmount.IsPositive():
		t.closePosition(ctx, uid, TriggerZeroAmount)
	case closeDue:
		t.closePosition(ctx, uid, TriggerClose)
	case partialDue:
		t.partialSell(ctx, uid)
	}
}

// changePct is computed in floating point against the BNB buy price. USD
// values are display only.
func changePct(buy, current decimal.Decimal) float64 {
	b := buy.InexactFloat64()
	if b == 0 {
		return 0
	}
	return (current.InexactFloat64() - b) / b * 100
}

// checkSafety gates one real trade. Returns false with the block recorded
// when the trade may not run.
func (t *Tracker) checkSafety(ctx context.Context, p *gobs.PositionState, trigger string) bool {
	if t.opts.DryRun {
		return true
	}
	if err := t.governor.Check(); err != nil {
		slog.Warn("trade is blocked by the safety governor", "uid", p.UID, "trigger", trigger, "err", err)
		t.mtr.SafetyBlocks.Inc()
		t.notifier.Notify(ctx, &notify.Event{
			Type:    notify.TypeSafetyBlocked,
			At:      t.timeNow(),
			Token:   p.TokenAddress,
			Owner:   p.OwnerID,
			Trigger: trigger,
			Reason:  err.Error(),
		})
		return false
	}
	return true
}

func (t *Tracker) recordTrade() {
	if !t.opts.DryRun {
		t.governor.Record()
	}
}

func (t *Tracker) partialSell(ctx context.Context, uid string) {
	t.mu.Lock()
	p, ok := t.positionMap[uid]
	if !ok || p.State != StateOpen || p.PartialTriggerDone {
		t.mu.Unlock()
		return
	}
	snapshot := *p
	t.mu.Unlock()

	if !t.checkSafety(ctx, &snapshot, TriggerPartial) {
		return
	}

	token := common.HexToAddress(snapshot.TokenAddress)
	pct := decimal.NewFromFloat(t.opts.PartialSellPct)
	result, err := t.executor.Sell(ctx, token, pct, snapshot.OwnerID)
	if err != nil || !result.Success {
		// State is not advanced; the next tick may retry within the window.
		t.reportTradeFailure(ctx, &snapshot, TriggerPartial, result, err)
		return
	}
	t.recordTrade()

	t.mu.Lock()
	p, ok = t.positionMap[uid]
	if ok {
		sold := p.TokenAmount.Mul(pct).Div(decimal.NewFromInt(100))
		p.TokenAmount = p.TokenAmount.Sub(sold)
		p.PartialTriggerDone = true
		p.State = StatePartialSold
		p.LastUpdated = t.timeNow()
		snapshot = *p
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if err := kvutil.SetDB(ctx, t.db, positionKey(uid), &snapshot); err != nil {
		slog.Error("could not save partially sold position", "uid", uid, "err", err)
	}

	slog.Info("partial sell trigger has fired", "uid", uid, "token", snapshot.TokenAddress, "changePct", snapshot.PriceChangePct, "txHash", result.TxHash)
	t.mtr.TriggerFires.WithLabelValues(TriggerPartial).Inc()
	t.mtr.TradesExecuted.WithLabelValues("sell").Inc()
	t.notifier.Notify(ctx, &notify.Event{
		Type:    notify.TypeTriggerFired,
		At:      t.timeNow(),
		Token:   snapshot.TokenAddress,
		Owner:   snapshot.OwnerID,
		Trigger: TriggerPartial,
		Side:    "sell",
		TxHash:  result.TxHash,
	})
}

func (t *Tracker) closePosition(ctx context.Context, uid, trigger string) {
	t.mu.Lock()
	p, ok := t.positionMap[uid]
	if !ok || p.State == StateClosed {
		t.mu.Unlock()
		return
	}
	snapshot := *p
	t.mu.Unlock()

	if snapshot.TokenAmount.IsPositive() {
		if !t.checkSafety(ctx, &snapshot, trigger) {
			return
		}
		token := common.HexToAddress(snapshot.TokenAddress)
		result, err := t.executor.Sell(ctx, token, decimal.NewFromInt(100), snapshot.OwnerID)
		if err != nil || !result.Success {
			t.reportTradeFailure(ctx, &snapshot, trigger, result, err)
			return
		}
		t.recordTrade()
		t.mtr.TradesExecuted.WithLabelValues("sell").Inc()
		snapshot.State = StateClosed
		snapshot.TokenAmount = decimal.Zero
		t.notifier.Notify(ctx, &notify.Event{
			Type:    notify.TypeTriggerFired,
			At:      t.timeNow(),
			Token:   snapshot.TokenAddress,
			Owner:   snapshot.OwnerID,
			Trigger: trigger,
			Side:    "sell",
			TxHash:  result.TxHash,
		})
	} else {
		snapshot.State = StateClosed
	}

	t.mu.Lock()
	p, ok = t.positionMap[uid]
	if ok {
		p.State = StateClosed
		p.TokenAmount = decimal.Zero
		p.LastUpdated = t.timeNow()
		snapshot = *p
		delete(t.positionMap, uid)
		t.mtr.OpenPositions.Set(float64(len(t.positionMap)))
	}
	t.mu.Unlock()

	if err := kvutil.SetDB(ctx, t.db, positionKey(uid), &snapshot); err != nil {
		slog.Error("could not save closed position", "uid", uid, "err", err)
	}
	slog.Info("position is closed", "uid", uid, "token", snapshot.TokenAddress, "trigger", trigger, "changePct", snapshot.PriceChangePct)
	t.mtr.TriggerFires.WithLabelValues(trigger).Inc()
}

func (t *Tracker) reportTradeFailure(ctx context.Context, p *gobs.PositionState, trigger string, result *trade.Result, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	} else if result != nil {
		reason = result.Error
	}
	slog.Warn("trade execution has failed", "uid", p.UID, "token", p.TokenAddress, "trigger", trigger, "reason", reason)
	t.mtr.TradesFailed.Inc()
	t.notifier.Notify(ctx, &notify.Event{
		Type:    notify.TypeTradeFailed,
		At:      t.timeNow(),
		Token:   p.TokenAddress,
		Owner:   p.OwnerID,
		Trigger: trigger,
		Side:    "sell",
		Reason:  reason,
	})
}

// HandleTargetSell closes every copied position whose tracked target wallet
// has sold the token.
func (t *Tracker) HandleTargetSell(ctx context.Context, target, token common.Address) {
	t.mu.Lock()
	var uids []string
	for uid, p := range t.positionMap {
		if p.CopiedFrom == target.Hex() && p.TokenAddress == token.Hex() {
			uids = append(uids, uid)
		}
	}
	t.mu.Unlock()

	for _, uid := range uids {
		slog.Info("tracked target wallet has sold; closing the copied position", "uid", uid, "target", target, "token", token)
		t.closePosition(ctx, uid, TriggerCopyExit)
	}
}

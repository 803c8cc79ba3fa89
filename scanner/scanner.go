// Copyright (c) 2025 BVK Chaitanya

// Package scanner runs the block polling loop. It advances a watermark over
// the chain, classifies every transaction in every new block and dispatches
// matched events to the trade path.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bvk/snipebot/chain"
	"github.com/bvk/snipebot/classify"
	"github.com/bvk/snipebot/ctxutil"
	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/kvutil"
	"github.com/bvk/snipebot/metrics"
	"github.com/bvk/snipebot/notify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/pattern"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/tracker"
	"github.com/bvk/snipebot/trade"
	"github.com/bvkgo/kv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const stateKey = "/scanner/state"

// CopyTarget is a wallet whose buys and sells are replicated at a ratio.
type CopyTarget struct {
	Wallet common.Address

	// Ratio scales the target's BNB spend to ours.
	Ratio decimal.Decimal

	OwnerID string
}

func (v *CopyTarget) Check() error {
	if v.Wallet == (common.Address{}) {
		return fmt.Errorf("copy target wallet cannot be the zero address")
	}
	if !v.Ratio.IsPositive() {
		return fmt.Errorf("copy ratio %s must be positive", v.Ratio)
	}
	if v.OwnerID == "" {
		return fmt.Errorf("copy target owner id cannot be empty")
	}
	return nil
}

type Options struct {
	ScanInterval time.Duration

	// MaxFetchRetries bounds retries for one block before the scanner stops
	// with a fatal error. The watermark never advances past a failing block.
	MaxFetchRetries    int
	FetchRetryInterval time.Duration

	// OwnerID owns positions opened by pattern matches.
	OwnerID string

	// DryRun skips the safety governor because no real trade is dispatched.
	DryRun bool
}

func (v *Options) setDefaults() {
	if v.ScanInterval == 0 {
		v.ScanInterval = 3 * time.Second
	}
	if v.MaxFetchRetries == 0 {
		v.MaxFetchRetries = 5
	}
	if v.FetchRetryInterval == 0 {
		v.FetchRetryInterval = time.Second
	}
	if v.OwnerID == "" {
		v.OwnerID = "default"
	}
}

func (v *Options) Check() error {
	if v.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if v.MaxFetchRetries <= 0 {
		return fmt.Errorf("max fetch retries must be positive")
	}
	return nil
}

type Scanner struct {
	opts Options

	db         kv.Database
	reader     chain.Reader
	classifier *classify.Classifier
	patterns   *pattern.Store
	governor   *safety.Governor
	executor   trade.Executor
	tracker    *tracker.Tracker
	oracle     oracle.Oracle
	notifier   notify.Notifier
	mtr        *metrics.Metrics

	copyMap map[common.Address]*CopyTarget

	// lastProcessed is read by the status handler concurrently with the
	// scan loop.
	lastProcessed atomic.Uint64
}

func New(db kv.Database, reader chain.Reader, c *classify.Classifier, ps *pattern.Store, g *safety.Governor, ex trade.Executor, tr *tracker.Tracker, o oracle.Oracle, n notify.Notifier, mtr *metrics.Metrics, targets []*CopyTarget, opts *Options) (*Scanner, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	copyMap := make(map[common.Address]*CopyTarget)
	for _, t := range targets {
		if err := t.Check(); err != nil {
			return nil, err
		}
		copyMap[t.Wallet] = t
	}
	s := &Scanner{
		opts:       *opts,
		db:         db,
		reader:     reader,
		classifier: c,
		patterns:   ps,
		governor:   g,
		executor:   ex,
		tracker:    tr,
		oracle:     o,
		notifier:   n,
		mtr:        mtr,
		copyMap:    copyMap,
	}
	return s, nil
}

// Run polls for new blocks until the context is canceled or the chain
// reader becomes unusable. An in-flight block always completes before Run
// returns; only the next iteration is skipped on cancellation.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.loadWatermark(ctx); err != nil {
		return err
	}

	timeout := time.NewTicker(s.opts.ScanInterval)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timeout.C:
			if err := s.scan(ctx); err != nil {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				s.notifier.Notify(ctx, &notify.Event{
					Type:        notify.TypeScannerStopped,
					At:          time.Now(),
					BlockNumber: s.lastProcessed.Load() + 1,
					Reason:      err.Error(),
				})
				return fmt.Errorf("block scanner has stopped: %w", err)
			}
		}
	}
}

func (s *Scanner) loadWatermark(ctx context.Context) error {
	state, err := kvutil.GetDB[gobs.ScannerState](ctx, s.db, stateKey)
	if err == nil {
		s.lastProcessed.Store(state.LastProcessedBlock)
		slog.Info("resuming block scan from the saved watermark", "block", state.LastProcessedBlock)
		return nil
	}
	// First run starts at the chain tip; backfilling old blocks would replay
	// stale trading opportunities.
	latest, err := s.reader.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("could not determine the chain tip: %w", err)
	}
	s.lastProcessed.Store(latest)
	slog.Info("starting block scan at the chain tip", "block", latest)
	return s.saveWatermark(ctx)
}

func (s *Scanner) saveWatermark(ctx context.Context) error {
	state := &gobs.ScannerState{
		LastProcessedBlock: s.lastProcessed.Load(),
		UpdatedAt:          time.Now(),
	}
	if err := kvutil.SetDB(ctx, s.db, stateKey, state); err != nil {
		return fmt.Errorf("could not save the scan watermark: %w", err)
	}
	s.mtr.Watermark.Set(float64(s.lastProcessed.Load()))
	return nil
}

// LastProcessedBlock returns the watermark. Safe for concurrent use.
func (s *Scanner) LastProcessedBlock() uint64 {
	return s.lastProcessed.Load()
}

// scan processes all blocks between the watermark and the chain tip, in
// ascending order. A block is retried up to the configured bound; exhausted
// retries are fatal so that blocks are never skipped silently.
func (s *Scanner) scan(ctx context.Context) error {
	var latest uint64
	err := ctxutil.RetryCount(ctx, s.opts.FetchRetryInterval, s.opts.MaxFetchRetries, func() error {
		n, err := s.reader.BlockNumber(ctx)
		if err != nil {
			s.mtr.FetchRetries.Inc()
			slog.Warn("could not fetch the latest block number (will retry)", "err", err)
			return err
		}
		latest = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("chain reader is unusable: %w", err)
	}

	// Patterns are swapped atomically between cycles; an in-flight cycle
	// keeps its snapshot.
	patterns := s.patterns.Patterns()

	for n := s.lastProcessed.Load() + 1; n <= latest; n++ {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		err := ctxutil.RetryCount(ctx, s.opts.FetchRetryInterval, s.opts.MaxFetchRetries, func() error {
			if err := s.processBlock(ctx, n, patterns); err != nil {
				s.mtr.FetchRetries.Inc()
				slog.Warn("could not process block (will retry)", "block", n, "err", err)
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("could not process block %d after %d attempts: %w", n, s.opts.MaxFetchRetries, err)
		}
		s.lastProcessed.Store(n)
		s.mtr.BlocksScanned.Inc()
		if err := s.saveWatermark(ctx); err != nil {
			return err
		}
	}
	return nil
}

// processBlock classifies every transaction of block n in the block's
// transaction order. Only fetch errors are returned; decode misses are
// dropped and counted inside the classifier.
func (s *Scanner) processBlock(ctx context.Context, n uint64, patterns []*pattern.Pattern) error {
	block, err := s.reader.BlockByNumber(ctx, n)
	if err != nil {
		return err
	}
	blockTime := time.Unix(int64(block.Time()), 0)
	for _, tx := range block.Transactions() {
		ev, err := s.classifier.Classify(ctx, tx, n, blockTime, s.reader.TransactionReceipt)
		if err != nil {
			return err
		}
		if ev == nil || ev.Kind == classify.Unknown {
			continue
		}
		s.dispatch(ctx, ev, patterns)
	}
	return nil
}

func (s *Scanner) dispatch(ctx context.Context, ev *classify.Event, patterns []*pattern.Pattern) {
	switch ev.Kind {
	case classify.TokenCreated:
		s.notifier.Notify(ctx, &notify.Event{
			Type:        notify.TypeTokenCreated,
			At:          ev.Timestamp,
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash.Hex(),
			Token:       ev.Token.Hex(),
		})
		s.matchPatterns(ctx, ev, patterns)

	case classify.Buy:
		if target, ok := s.copyMap[ev.From]; ok {
			s.copyBuy(ctx, ev, target)
		}

	case classify.Sell:
		if target, ok := s.copyMap[ev.From]; ok {
			s.notifier.Notify(ctx, &notify.Event{
				Type:        notify.TypeCopyDetected,
				At:          ev.Timestamp,
				BlockNumber: ev.BlockNumber,
				TxHash:      ev.TxHash.Hex(),
				Token:       ev.Token.Hex(),
				Owner:       target.OwnerID,
				Side:        "sell",
			})
			s.tracker.HandleTargetSell(ctx, ev.From, ev.Token)
		}
	}
}

func (s *Scanner) matchPatterns(ctx context.Context, ev *classify.Event, patterns []*pattern.Pattern) {
	result, reason := pattern.Match(patterns, ev)
	if result == nil {
		s.mtr.PatternMisses.Inc()
		s.notifier.Notify(ctx, &notify.Event{
			Type:        notify.TypePatternUnmatched,
			At:          ev.Timestamp,
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash.Hex(),
			Token:       ev.Token.Hex(),
			Reason:      reason,
		})
		return
	}
	s.mtr.PatternMatches.Inc()
	slog.Info("token creation has matched a pattern", "token", ev.Token, "pattern", result.Pattern.ID, "tx", ev.TxHash)
	s.notifier.Notify(ctx, &notify.Event{
		Type:        notify.TypePatternMatched,
		At:          ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash.Hex(),
		Token:       ev.Token.Hex(),
		Pattern:     result.Pattern.ID,
	})
	s.buy(ctx, ev.Token, result.Pattern.Trading.BuyAmount, s.opts.OwnerID, "", "pattern:"+result.Pattern.ID)
}

func (s *Scanner) copyBuy(ctx context.Context, ev *classify.Event, target *CopyTarget) {
	amount := ev.BNBValue.Mul(target.Ratio)
	if !amount.IsPositive() {
		return
	}
	s.notifier.Notify(ctx, &notify.Event{
		Type:        notify.TypeCopyDetected,
		At:          ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash.Hex(),
		Token:       ev.Token.Hex(),
		Owner:       target.OwnerID,
		Side:        "buy",
	})
	slog.Info("copying a buy from the tracked target", "target", ev.From, "token", ev.Token, "amount", amount)
	s.buy(ctx, ev.Token, amount, target.OwnerID, ev.From.Hex(), "copy:"+ev.From.Hex())
}

// buy gates and dispatches one buy and inserts the resulting position into
// the tracker on success.
func (s *Scanner) buy(ctx context.Context, token common.Address, amount decimal.Decimal, ownerID, copiedFrom, source string) {
	if !s.opts.DryRun {
		if err := s.governor.Check(); err != nil {
			slog.Warn("buy is blocked by the safety governor", "token", token, "source", source, "err", err)
			s.mtr.SafetyBlocks.Inc()
			s.notifier.Notify(ctx, &notify.Event{
				Type:   notify.TypeSafetyBlocked,
				At:     time.Now(),
				Token:  token.Hex(),
				Owner:  ownerID,
				Side:   "buy",
				Reason: err.Error(),
			})
			return
		}
	}

	result, err := s.executor.Buy(ctx, token, amount, ownerID)
	if err != nil || !result.Success {
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = result.Error
		}
		slog.Warn("buy execution has failed", "token", token, "source", source, "reason", reason)
		s.mtr.TradesFailed.Inc()
		s.notifier.Notify(ctx, &notify.Event{
			Type:   notify.TypeTradeFailed,
			At:     time.Now(),
			Token:  token.Hex(),
			Owner:  ownerID,
			Side:   "buy",
			Reason: reason,
		})
		return
	}
	if !s.opts.DryRun {
		s.governor.Record()
	}
	s.mtr.TradesExecuted.WithLabelValues("buy").Inc()
	s.notifier.Notify(ctx, &notify.Event{
		Type:   notify.TypeTradeExecuted,
		At:     time.Now(),
		Token:  token.Hex(),
		Owner:  ownerID,
		Side:   "buy",
		TxHash: result.TxHash,
	})

	if err := s.track(ctx, token, amount, result, ownerID, copiedFrom); err != nil {
		slog.Error("could not track the bought position", "token", token, "err", err)
	}
}

func (s *Scanner) track(ctx context.Context, token common.Address, bnbSpent decimal.Decimal, result *trade.Result, ownerID, copiedFrom string) error {
	price, err := s.oracle.GetCurrentPrice(ctx, token)
	if err != nil {
		return fmt.Errorf("could not fetch the buy price: %w", err)
	}
	buyPrice := price.PriceBNB
	tokenAmount := result.TokenAmount
	if tokenAmount.IsPositive() {
		// The executor's fill is more accurate than the oracle snapshot.
		buyPrice = bnbSpent.Div(tokenAmount)
	} else if buyPrice.IsPositive() {
		tokenAmount = bnbSpent.Div(buyPrice)
	} else {
		return fmt.Errorf("token has no price and the executor reported no fill amount")
	}
	p := &gobs.PositionState{
		TokenAddress: token.Hex(),
		OwnerID:      ownerID,
		CopiedFrom:   copiedFrom,
		BuyPriceBNB:  buyPrice,
		BuyPriceUSD:  price.PriceUSD,
		BNBSpent:     bnbSpent,
		TokenAmount:  tokenAmount,
		BuyTime:      time.Now(),
	}
	return s.tracker.Add(ctx, p)
}

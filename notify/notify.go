// Copyright (c) 2025 BVK Chaitanya

// Package notify carries decision records out of the engine. Every trigger
// fire, trade outcome, and no-match decision is reported here so that "do
// nothing" decisions are visible offline. Delivery is best-effort; a failed
// sink never blocks or fails the caller.
package notify

import (
	"context"
	"log/slog"
	"time"
)

const (
	TypeTokenCreated     = "token-created"
	TypePatternMatched   = "pattern-matched"
	TypePatternUnmatched = "pattern-unmatched"
	TypeCopyDetected     = "copy-detected"
	TypeTriggerFired     = "trigger-fired"
	TypeTradeExecuted    = "trade-executed"
	TypeTradeFailed      = "trade-failed"
	TypeSafetyBlocked    = "safety-blocked"
	TypeClassifyDropped  = "classify-dropped"
	TypeScannerStopped   = "scanner-stopped"
)

// Event is one decision record.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	BlockNumber uint64 `json:"blockNumber,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	Token       string `json:"token,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Trigger     string `json:"trigger,omitempty"`
	Side        string `json:"side,omitempty"`

	// Reason explains no-match, blocked, dropped, and failed records.
	Reason string `json:"reason,omitempty"`
}

type Notifier interface {
	// Notify may not block on slow sinks and may not return delivery
	// failures to the caller.
	Notify(ctx context.Context, ev *Event)
}

// MultiNotifier fans one record out to every sink.
type MultiNotifier []Notifier

var _ Notifier = MultiNotifier{}

func (m MultiNotifier) Notify(ctx context.Context, ev *Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

// LogNotifier writes records to the structured log.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) Notify(ctx context.Context, ev *Event) {
	slog.Info("decision record",
		"type", ev.Type,
		"block", ev.BlockNumber,
		"tx", ev.TxHash,
		"token", ev.Token,
		"owner", ev.Owner,
		"pattern", ev.Pattern,
		"trigger", ev.Trigger,
		"side", ev.Side,
		"reason", ev.Reason)
}

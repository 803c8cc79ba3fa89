// Copyright (c) 2025 BVK Chaitanya

// Package metrics defines the prometheus instrumentation exposed on the
// daemon's http port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	BlocksScanned prometheus.Counter

	EventsClassified *prometheus.CounterVec

	ClassifyDrops prometheus.Counter

	PatternMatches prometheus.Counter

	PatternMisses prometheus.Counter

	TradesExecuted *prometheus.CounterVec

	TradesFailed prometheus.Counter

	SafetyBlocks prometheus.Counter

	TriggerFires *prometheus.CounterVec

	FetchRetries prometheus.Counter

	Watermark prometheus.Gauge

	OpenPositions prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		BlocksScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_blocks_scanned_total",
			Help: "Total number of blocks fully processed",
		}),
		EventsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snipebot_events_classified_total",
			Help: "Total number of classified transactions by event kind",
		}, []string{"kind"}),
		ClassifyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_classify_drops_total",
			Help: "Total number of events dropped for missing or unparsable fields",
		}),
		PatternMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_pattern_matches_total",
			Help: "Total number of events that fully matched a pattern",
		}),
		PatternMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_pattern_misses_total",
			Help: "Total number of events that matched no pattern",
		}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snipebot_trades_executed_total",
			Help: "Total number of successful trade executions by side",
		}, []string{"side"}),
		TradesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_trades_failed_total",
			Help: "Total number of failed trade executions",
		}),
		SafetyBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_safety_blocks_total",
			Help: "Total number of trades rejected by the safety governor",
		}),
		TriggerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snipebot_trigger_fires_total",
			Help: "Total number of price trigger fires by trigger name",
		}, []string{"trigger"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snipebot_fetch_retries_total",
			Help: "Total number of block or receipt fetch retries",
		}),
		Watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snipebot_watermark_block",
			Help: "Highest block number fully processed",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snipebot_open_positions",
			Help: "Number of positions currently tracked",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.BlocksScanned, m.EventsClassified, m.ClassifyDrops,
		m.PatternMatches, m.PatternMisses, m.TradesExecuted, m.TradesFailed,
		m.SafetyBlocks, m.TriggerFires, m.FetchRetries, m.Watermark, m.OpenPositions)
	return m
}

// Handler returns the http handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

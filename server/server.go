// Copyright (c) 2025 BVK Chaitanya

// Package server assembles the engine: chain reader, classifier, pattern
// store, safety governor, tracker, scanner and the notification sinks.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bvk/snipebot/chain"
	"github.com/bvk/snipebot/classify"
	"github.com/bvk/snipebot/config"
	"github.com/bvk/snipebot/ctxutil"
	"github.com/bvk/snipebot/job"
	"github.com/bvk/snipebot/metrics"
	"github.com/bvk/snipebot/notify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/pattern"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/scanner"
	"github.com/bvk/snipebot/telegram"
	"github.com/bvk/snipebot/tracker"
	"github.com/bvk/snipebot/trade"
	"github.com/bvkgo/kv"
	"github.com/ethereum/go-ethereum/common"
)

type Server struct {
	closeGroup ctxutil.CloseGroup

	cfg *config.Config

	db kv.Database

	mtr *metrics.Metrics

	governor *safety.Governor

	chainClient *chain.Client

	classifier *classify.Classifier

	patterns *pattern.Store

	oracleClient *oracle.Client
	feed         *oracle.Feed

	executor trade.Executor

	venues *trade.VenueResolver

	tracker *tracker.Tracker

	scanner *scanner.Scanner

	notifier notify.Notifier
	kafka    *notify.KafkaNotifier

	// telegram may be nil when no bot credentials are configured.
	telegram *telegram.Client

	scanJob  *job.Job
	trackJob *job.Job

	start time.Time
}

func New(ctx context.Context, db kv.Database, cfg *config.Config, tg *telegram.Client) (_ *Server, status error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		db:       db,
		mtr:      metrics.New(),
		telegram: tg,
		start:    time.Now(),
	}
	defer func() {
		if status != nil {
			s.Close()
		}
	}()

	governor, err := safety.New(cfg.SafetyLimits())
	if err != nil {
		return nil, err
	}
	if cfg.Safety.EmergencyStop {
		governor.SetEmergencyStop(true)
	}
	s.governor = governor

	chainClient, err := chain.Dial(ctx, cfg.Chain.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial the chain endpoint: %w", err)
	}
	s.chainClient = chainClient

	ccfg, err := cfg.ClassifierConfig()
	if err != nil {
		return nil, err
	}
	classifier, err := classify.New(ccfg, s.mtr)
	if err != nil {
		return nil, err
	}
	s.classifier = classifier

	patterns, err := pattern.NewStore(cfg.PatternsFile)
	if err != nil {
		return nil, err
	}
	s.patterns = patterns

	oracleClient, err := oracle.New(cfg.OracleOptions())
	if err != nil {
		return nil, err
	}
	s.oracleClient = oracleClient

	var priceSource oracle.Oracle = oracleClient
	if cfg.Oracle.WebsocketHostname != "" {
		s.feed = oracle.NewFeed(oracleClient, cfg.Oracle.WebsocketHostname)
		priceSource = s.feed
	}

	if cfg.DryRun {
		s.executor = trade.NewSimulator(priceSource)
		slog.Warn("dry-run mode is active; no real trades will be dispatched")
	} else {
		executor, err := trade.New(cfg.ExecutorOptions())
		if err != nil {
			return nil, err
		}
		s.executor = executor
	}

	s.venues = trade.NewVenueResolver(priceSource)

	sinks := notify.MultiNotifier{notify.LogNotifier{}}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		s.kafka = kafka
		sinks = append(sinks, kafka)
	}
	if tg != nil {
		sinks = append(sinks, tg.Notifier())
	}
	s.notifier = sinks

	tr, err := tracker.New(ctx, db, priceSource, s.executor, governor, s.notifier, s.mtr, cfg.TrackerOptions())
	if err != nil {
		return nil, err
	}
	s.tracker = tr

	sc, err := scanner.New(db, chainClient, classifier, patterns, governor, s.executor, tr, priceSource, s.notifier, s.mtr, cfg.ScannerCopyTargets(), cfg.ScannerOptions())
	if err != nil {
		return nil, err
	}
	s.scanner = sc
	return s, nil
}

// Start launches the scan and refresh loops as cancelable jobs.
func (s *Server) Start(ctx context.Context) error {
	if s.scanJob != nil {
		return fmt.Errorf("server is already started")
	}
	s.scanJob = job.Run(s.scanner.Run, context.Background())
	s.trackJob = job.Run(s.tracker.Run, context.Background())

	if s.feed != nil {
		s.closeGroup.Go(s.goWatchPositionTokens)
	}

	if s.telegram != nil {
		if err := s.addTelegramCommands(ctx); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "snipebot server has started", "dryRun", s.cfg.DryRun)
	return nil
}

// Stop cancels the loops and waits for in-flight work to finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.scanJob != nil {
		s.scanJob.Cancel()
		s.trackJob.Cancel()
		s.scanJob.Wait(ctx)
		s.trackJob.Wait(ctx)
		s.scanJob, s.trackJob = nil, nil
	}
	return nil
}

func (s *Server) Close() error {
	s.closeGroup.Close()
	if s.kafka != nil {
		s.kafka.Close()
	}
	if s.feed != nil {
		s.feed.Close()
	}
	if s.chainClient != nil {
		s.chainClient.Close()
	}
	return nil
}

// goWatchPositionTokens keeps the price feed subscribed to every token with
// an open position.
func (s *Server) goWatchPositionTokens(ctx context.Context) {
	watched := make(map[common.Address]bool)
	for ctx.Err() == nil {
		current := make(map[common.Address]bool)
		for _, p := range s.tracker.Positions() {
			current[common.HexToAddress(p.TokenAddress)] = true
		}
		for token := range current {
			if !watched[token] {
				s.feed.Watch(token)
			}
		}
		for token := range watched {
			if !current[token] {
				s.feed.Unwatch(token)
			}
		}
		watched = current
		ctxutil.Sleep(ctx, 5*time.Second)
	}
}

func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		"/status":          http.HandlerFunc(s.statusHandler),
		"/positions":       http.HandlerFunc(s.positionsHandler),
		"/patterns":        http.HandlerFunc(s.patternsHandler),
		"/patterns/reload": http.HandlerFunc(s.reloadHandler),
		"/safety/stop":     http.HandlerFunc(s.safetyStopHandler),
		"/safety/resume":   http.HandlerFunc(s.safetyResumeHandler),
		"/venue":           http.HandlerFunc(s.venueHandler),
		"/metrics":         s.mtr.Handler(),
	}
}

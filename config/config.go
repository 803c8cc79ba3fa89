// Copyright (c) 2025 BVK Chaitanya

// Package config loads and validates the daemon configuration. All values
// are checked once at load time; components receive already validated
// options.
package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/bvk/snipebot/classify"
	"github.com/bvk/snipebot/oracle"
	"github.com/bvk/snipebot/safety"
	"github.com/bvk/snipebot/scanner"
	"github.com/bvk/snipebot/tracker"
	"github.com/bvk/snipebot/trade"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type ChainConfig struct {
	// Endpoint is the RPC node address, like "https://bsc-dataseed.binance.org".
	Endpoint string `json:"endpoint"`

	ChainID int64 `json:"chainId"`

	TargetContract     string `json:"targetContract"`
	CreationEventTopic string `json:"creationEventTopic"`

	// Selectors maps 4-byte method selectors to "create", "buy" or "sell".
	Selectors map[string]string `json:"selectors"`

	// Routers holds selector tables for secondary routers, keyed by the
	// router contract address.
	Routers map[string]map[string]string `json:"routers"`
}

type ScanConfig struct {
	IntervalSecs    int    `json:"intervalSecs"`
	MaxFetchRetries int    `json:"maxFetchRetries"`
	FetchRetrySecs  int    `json:"fetchRetrySecs"`
	OwnerID         string `json:"ownerId"`
}

type SafetyConfig struct {
	MaxTradesPerHour int  `json:"maxTradesPerHour"`
	MaxTradesPerDay  int  `json:"maxTradesPerDay"`
	EmergencyStop    bool `json:"emergencyStop"`
}

type TrackerConfig struct {
	UpdateIntervalSecs int `json:"updateIntervalSecs"`

	PartialTriggerPct        float64 `json:"partialTriggerPct"`
	PartialTriggerWindowSecs int     `json:"partialTriggerWindowSecs"`
	PartialSellPct           float64 `json:"partialSellPct"`
	CloseTriggerPct          float64 `json:"closeTriggerPct"`
	CloseTriggerWindowSecs   int     `json:"closeTriggerWindowSecs"`
}

type CopyTargetConfig struct {
	Wallet  string          `json:"wallet"`
	Ratio   decimal.Decimal `json:"ratio"`
	OwnerID string          `json:"ownerId"`
}

type OracleConfig struct {
	RestHostname      string `json:"restHostname"`
	WebsocketHostname string `json:"websocketHostname"`
	MaxPriceAgeSecs   int    `json:"maxPriceAgeSecs"`
}

type ExecutorConfig struct {
	RestHostname string `json:"restHostname"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type Config struct {
	Chain ChainConfig `json:"chain"`

	PatternsFile string `json:"patternsFile"`

	Scan    ScanConfig    `json:"scan"`
	Safety  SafetyConfig  `json:"safety"`
	Tracker TrackerConfig `json:"tracker"`

	CopyTargets []CopyTargetConfig `json:"copyTargets"`

	Oracle   OracleConfig   `json:"oracle"`
	Executor ExecutorConfig `json:"executor"`

	// Kafka is optional; when empty no decision stream is published.
	Kafka KafkaConfig `json:"kafka"`

	// DryRun replaces the trade executor with a simulator.
	DryRun bool `json:"dryRun"`
}

func Load(fpath string) (*Config, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	c := new(Config)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %w", fpath, err)
	}
	if err := c.Check(); err != nil {
		return nil, fmt.Errorf("config file %q is invalid: %w", fpath, err)
	}
	return c, nil
}

func (c *Config) Check() error {
	if c.Chain.Endpoint == "" {
		return fmt.Errorf("chain endpoint cannot be empty")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if !common.IsHexAddress(c.Chain.TargetContract) {
		return fmt.Errorf("target contract %q is not a valid address", c.Chain.TargetContract)
	}
	if len(c.Chain.Selectors) == 0 {
		return fmt.Errorf("selector table cannot be empty")
	}
	if c.PatternsFile == "" {
		return fmt.Errorf("patterns file cannot be empty")
	}
	if c.Scan.IntervalSecs < 0 || c.Tracker.UpdateIntervalSecs < 0 {
		return fmt.Errorf("intervals cannot be negative")
	}
	for i, t := range c.CopyTargets {
		if !common.IsHexAddress(t.Wallet) {
			return fmt.Errorf("copy target %d wallet %q is not a valid address", i, t.Wallet)
		}
		if !t.Ratio.IsPositive() {
			return fmt.Errorf("copy target %d ratio must be positive", i)
		}
	}
	if _, err := c.ClassifierConfig(); err != nil {
		return err
	}
	limits := c.SafetyLimits()
	if err := limits.Check(); err != nil {
		return err
	}
	if !c.DryRun && c.Executor.RestHostname == "" {
		return fmt.Errorf("executor rest hostname is required outside dry-run mode")
	}
	if c.Oracle.RestHostname == "" {
		return fmt.Errorf("oracle rest hostname cannot be empty")
	}
	return nil
}

func (c *Config) ClassifierConfig() (*classify.Config, error) {
	selectors, err := classify.ParseTable(c.Chain.Selectors)
	if err != nil {
		return nil, err
	}
	routers := make(map[common.Address]classify.Table)
	for addr, table := range c.Chain.Routers {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("router %q is not a valid address", addr)
		}
		t, err := classify.ParseTable(table)
		if err != nil {
			return nil, err
		}
		routers[common.HexToAddress(addr)] = t
	}
	cfg := &classify.Config{
		ChainID:            big.NewInt(c.Chain.ChainID),
		TargetContract:     common.HexToAddress(c.Chain.TargetContract),
		Selectors:          selectors,
		CreationEventTopic: common.HexToHash(c.Chain.CreationEventTopic),
		Routers:            routers,
	}
	return cfg, nil
}

func (c *Config) SafetyLimits() safety.Limits {
	return safety.Limits{
		MaxTradesPerHour: c.Safety.MaxTradesPerHour,
		MaxTradesPerDay:  c.Safety.MaxTradesPerDay,
	}
}

func (c *Config) ScannerOptions() *scanner.Options {
	return &scanner.Options{
		ScanInterval:       time.Duration(c.Scan.IntervalSecs) * time.Second,
		MaxFetchRetries:    c.Scan.MaxFetchRetries,
		FetchRetryInterval: time.Duration(c.Scan.FetchRetrySecs) * time.Second,
		OwnerID:            c.Scan.OwnerID,
		DryRun:             c.DryRun,
	}
}

func (c *Config) TrackerOptions() *tracker.Options {
	return &tracker.Options{
		UpdateInterval:       time.Duration(c.Tracker.UpdateIntervalSecs) * time.Second,
		PartialTriggerPct:    c.Tracker.PartialTriggerPct,
		PartialTriggerWindow: time.Duration(c.Tracker.PartialTriggerWindowSecs) * time.Second,
		PartialSellPct:       c.Tracker.PartialSellPct,
		CloseTriggerPct:      c.Tracker.CloseTriggerPct,
		CloseTriggerWindow:   time.Duration(c.Tracker.CloseTriggerWindowSecs) * time.Second,
		DryRun:               c.DryRun,
	}
}

func (c *Config) OracleOptions() *oracle.Options {
	return &oracle.Options{
		RestHostname: c.Oracle.RestHostname,
		MaxPriceAge:  time.Duration(c.Oracle.MaxPriceAgeSecs) * time.Second,
	}
}

func (c *Config) ExecutorOptions() *trade.Options {
	return &trade.Options{
		RestHostname: c.Executor.RestHostname,
	}
}

func (c *Config) ScannerCopyTargets() []*scanner.CopyTarget {
	var targets []*scanner.CopyTarget
	for _, t := range c.CopyTargets {
		ownerID := t.OwnerID
		if ownerID == "" {
			ownerID = "copy:" + t.Wallet
		}
		targets = append(targets, &scanner.CopyTarget{
			Wallet:  common.HexToAddress(t.Wallet),
			Ratio:   t.Ratio,
			OwnerID: ownerID,
		})
	}
	return targets
}

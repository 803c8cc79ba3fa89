// Copyright (c) 2025 BVK Chaitanya

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bvk/snipebot/classify"
)

const validConfig = `{
  "chain": {
    "endpoint": "https://bsc-dataseed.binance.org",
    "chainId": 56,
    "targetContract": "0x5c952063c7fc8610ffdb798152d69f0b9550762b",
    "creationEventTopic": "0x1111111111111111111111111111111111111111111111111111111111111111",
    "selectors": {
      "0x519ebb10": "create",
      "0xabcd1234": "buy",
      "0xcdef5678": "sell"
    }
  },
  "patternsFile": "patterns.json",
  "scan": {"intervalSecs": 3, "maxFetchRetries": 5, "fetchRetrySecs": 1},
  "safety": {"maxTradesPerHour": 3, "maxTradesPerDay": 10},
  "tracker": {"updateIntervalSecs": 2},
  "copyTargets": [
    {"wallet": "0x2222222222222222222222222222222222222222", "ratio": "0.5", "ownerId": "copier-1"}
  ],
  "oracle": {"restHostname": "oracle.example.com"},
  "executor": {"restHostname": "executor.example.com"}
}`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	fpath := filepath.Join(t.TempDir(), "snipebot.json")
	if err := os.WriteFile(fpath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return fpath
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := c.ClassifierConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Selectors) != 3 {
		t.Fatalf("want 3 selectors, got %d", len(cfg.Selectors))
	}
	want, err := classify.ParseTable(c.Chain.Selectors)
	if err != nil {
		t.Fatal(err)
	}
	for sel, op := range want {
		if cfg.Selectors[sel] != op {
			t.Fatalf("selector %s: want %s, got %s", sel, op, cfg.Selectors[sel])
		}
	}

	opts := c.ScannerOptions()
	if opts.MaxFetchRetries != 5 {
		t.Fatalf("want 5 fetch retries, got %d", opts.MaxFetchRetries)
	}

	targets := c.ScannerCopyTargets()
	if len(targets) != 1 || targets[0].OwnerID != "copier-1" {
		t.Fatalf("copy targets are not loaded: %v", targets)
	}

	limits := c.SafetyLimits()
	if limits.MaxTradesPerHour != 3 || limits.MaxTradesPerDay != 10 {
		t.Fatalf("safety limits are not loaded: %+v", limits)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"empty-endpoint", func(c *Config) { c.Chain.Endpoint = "" }},
		{"bad-target", func(c *Config) { c.Chain.TargetContract = "not-an-address" }},
		{"no-selectors", func(c *Config) { c.Chain.Selectors = nil }},
		{"bad-selector", func(c *Config) { c.Chain.Selectors = map[string]string{"0x51": "create"} }},
		{"bad-op", func(c *Config) { c.Chain.Selectors = map[string]string{"0x519ebb10": "mint"} }},
		{"no-patterns", func(c *Config) { c.PatternsFile = "" }},
		{"bad-safety", func(c *Config) { c.Safety.MaxTradesPerDay = 1 }},
		{"no-executor", func(c *Config) { c.Executor.RestHostname = "" }},
		{"bad-copy-wallet", func(c *Config) { c.CopyTargets[0].Wallet = "bogus" }},
	}
	for _, test := range tests {
		c, err := Load(writeConfig(t, validConfig))
		if err != nil {
			t.Fatal(err)
		}
		test.edit(c)
		if err := c.Check(); err == nil {
			t.Errorf("%s: config must fail the check", test.name)
		}
	}
}

func TestDryRunNeedsNoExecutor(t *testing.T) {
	c, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	c.DryRun = true
	c.Executor.RestHostname = ""
	if err := c.Check(); err != nil {
		t.Fatalf("dry-run config must not require an executor: %v", err)
	}
}

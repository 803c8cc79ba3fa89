// Copyright (c) 2025 BVK Chaitanya

package safety

import (
	"errors"
	"testing"
	"time"
)

func newTestGovernor(t *testing.T, hourly, daily int) (*Governor, *time.Time) {
	t.Helper()
	g, err := New(Limits{MaxTradesPerHour: hourly, MaxTradesPerDay: daily})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	g.timeNow = func() time.Time { return now }
	g.hourStart, g.dayStart = now, now
	return g, &now
}

func TestHourlyLimit(t *testing.T) {
	g, now := newTestGovernor(t, 3, 100)

	for i := 0; i < 3; i++ {
		if err := g.Check(); err != nil {
			t.Fatalf("trade %d must be allowed: %v", i, err)
		}
		g.Record()
	}

	err := g.Check()
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("want BlockedError after limit, got %v", err)
	}

	// The counter resets only after the hour boundary elapses.
	*now = now.Add(59 * time.Minute)
	if err := g.Check(); err == nil {
		t.Fatalf("trade must stay blocked within the hour window")
	}
	*now = now.Add(2 * time.Minute)
	if err := g.Check(); err != nil {
		t.Fatalf("trade must be allowed after the window rolls over: %v", err)
	}
}

func TestDailyLimit(t *testing.T) {
	g, now := newTestGovernor(t, 2, 3)

	for i := 0; i < 3; i++ {
		*now = now.Add(61 * time.Minute) // avoid the hourly limit
		if err := g.Check(); err != nil {
			t.Fatalf("trade %d must be allowed: %v", i, err)
		}
		g.Record()
	}

	*now = now.Add(61 * time.Minute)
	if err := g.Check(); err == nil {
		t.Fatalf("daily limit must block the fourth trade")
	}

	*now = now.Add(24 * time.Hour)
	if err := g.Check(); err != nil {
		t.Fatalf("trade must be allowed after the daily window rolls over: %v", err)
	}
}

func TestEmergencyStop(t *testing.T) {
	g, _ := newTestGovernor(t, 10, 10)

	g.SetEmergencyStop(true)
	if err := g.Check(); err == nil {
		t.Fatalf("emergency stop must block every trade")
	}
	g.SetEmergencyStop(false)
	if err := g.Check(); err != nil {
		t.Fatalf("clearing the emergency stop must allow trades: %v", err)
	}
}

func TestLimitsCheck(t *testing.T) {
	bad := []Limits{
		{MaxTradesPerHour: 0, MaxTradesPerDay: 10},
		{MaxTradesPerHour: 10, MaxTradesPerDay: 0},
		{MaxTradesPerHour: 10, MaxTradesPerDay: 5},
	}
	for i, limits := range bad {
		if err := limits.Check(); err == nil {
			t.Errorf("limits %d must be rejected", i)
		}
	}
}

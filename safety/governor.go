// Copyright (c) 2025 BVK Chaitanya

// Package safety implements the rate/volume limiter consulted before every
// real trade execution. Counters live only in memory; a daemon restart
// resets all windows.
package safety

import (
	"fmt"
	"sync"
	"time"
)

// BlockedError reports why a trade was rejected. Safety blocks are recorded
// distinctly from trade failures.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "trade blocked: " + e.Reason
}

type Limits struct {
	MaxTradesPerHour int
	MaxTradesPerDay  int
}

func (v *Limits) Check() error {
	if v.MaxTradesPerHour <= 0 {
		return fmt.Errorf("max trades per hour must be positive")
	}
	if v.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max trades per day must be positive")
	}
	if v.MaxTradesPerDay < v.MaxTradesPerHour {
		return fmt.Errorf("daily limit cannot be below the hourly limit")
	}
	return nil
}

// Governor is a pure rate limiter, not a token bucket; bursts up to the
// limit are permitted within a window. Window rollover is evaluated lazily
// on every check.
type Governor struct {
	mu sync.Mutex

	limits Limits

	emergencyStop bool

	hourStart time.Time
	dayStart  time.Time
	hourCount int
	dayCount  int

	timeNow func() time.Time
}

type Status struct {
	TradesThisHour int
	TradesThisDay  int
	HourWindowEnd  time.Time
	DayWindowEnd   time.Time
	EmergencyStop  bool
}

func New(limits Limits) (*Governor, error) {
	if err := limits.Check(); err != nil {
		return nil, err
	}
	g := &Governor{
		limits:  limits,
		timeNow: time.Now,
	}
	now := g.timeNow()
	g.hourStart, g.dayStart = now, now
	return g, nil
}

func (g *Governor) rolloverLocked(now time.Time) {
	if now.Sub(g.hourStart) > time.Hour {
		g.hourCount, g.hourStart = 0, now
	}
	if now.Sub(g.dayStart) > 24*time.Hour {
		g.dayCount, g.dayStart = 0, now
	}
}

// Check returns a *BlockedError when a real trade must not run now. A nil
// return does not reserve capacity; callers record the trade with Record
// after the execution succeeds. Separate positions may race each other on
// these counters, which the windows tolerate as if interleaved arbitrarily.
func (g *Governor) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.emergencyStop {
		return &BlockedError{Reason: "emergency stop is active"}
	}
	g.rolloverLocked(g.timeNow())
	if g.hourCount >= g.limits.MaxTradesPerHour {
		return &BlockedError{Reason: fmt.Sprintf("hourly trade limit %d reached", g.limits.MaxTradesPerHour)}
	}
	if g.dayCount >= g.limits.MaxTradesPerDay {
		return &BlockedError{Reason: fmt.Sprintf("daily trade limit %d reached", g.limits.MaxTradesPerDay)}
	}
	return nil
}

// Record counts one successful real trade against both windows.
func (g *Governor) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.timeNow())
	g.hourCount++
	g.dayCount++
}

// SetEmergencyStop toggles the kill switch. While set, every Check fails.
func (g *Governor) SetEmergencyStop(stop bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emergencyStop = stop
}

func (g *Governor) EmergencyStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergencyStop
}

func (g *Governor) Status() *Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.timeNow())
	return &Status{
		TradesThisHour: g.hourCount,
		TradesThisDay:  g.dayCount,
		HourWindowEnd:  g.hourStart.Add(time.Hour),
		DayWindowEnd:   g.dayStart.Add(24 * time.Hour),
		EmergencyStop:  g.emergencyStop,
	}
}

// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bvk/snipebot/gobs"
	"github.com/bvk/snipebot/job"
	"github.com/bvk/snipebot/safety"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shirou/gopsutil/v4/process"
)

type Status struct {
	Uptime string `json:"uptime"`

	DryRun bool `json:"dryRun"`

	LastProcessedBlock uint64 `json:"lastProcessedBlock"`

	ScannerState job.State `json:"scannerState"`
	TrackerState job.State `json:"trackerState"`

	OpenPositions int `json:"openPositions"`

	Safety *safety.Status `json:"safety"`

	NumPatterns int `json:"numPatterns"`

	MemoryRSS  uint64  `json:"memoryRss,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
}

func (s *Server) status(ctx context.Context) *Status {
	status := &Status{
		Uptime:             time.Since(s.start).Round(time.Second).String(),
		DryRun:             s.cfg.DryRun,
		LastProcessedBlock: s.scanner.LastProcessedBlock(),
		OpenPositions:      len(s.tracker.Positions()),
		Safety:             s.governor.Status(),
		NumPatterns:        len(s.patterns.Patterns()),
	}
	if s.scanJob != nil {
		status.ScannerState = s.scanJob.State()
		status.TrackerState = s.trackJob.State()
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil {
			status.MemoryRSS = mem.RSS
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			status.CPUPercent = pct
		}
	}
	return status
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("could not write json response", "err", err)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status(r.Context()))
}

func (s *Server) positionsHandler(w http.ResponseWriter, r *http.Request) {
	positions := s.tracker.Positions()
	if positions == nil {
		positions = []*gobs.PositionState{}
	}
	writeJSON(w, positions)
}

func (s *Server) patternsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.patterns.Patterns())
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "reload requires POST", http.StatusMethodNotAllowed)
		return
	}
	if err := s.patterns.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Info("pattern file is reloaded", "count", len(s.patterns.Patterns()))
	writeJSON(w, map[string]int{"numPatterns": len(s.patterns.Patterns())})
}

func (s *Server) safetyStopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "stop requires POST", http.StatusMethodNotAllowed)
		return
	}
	s.governor.SetEmergencyStop(true)
	slog.Warn("emergency stop is now active")
	writeJSON(w, s.governor.Status())
}

func (s *Server) safetyResumeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "resume requires POST", http.StatusMethodNotAllowed)
		return
	}
	s.governor.SetEmergencyStop(false)
	slog.Info("emergency stop is now cleared")
	writeJSON(w, s.governor.Status())
}

func (s *Server) venueHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !common.IsHexAddress(token) {
		http.Error(w, "token query parameter must be a valid address", http.StatusBadRequest)
		return
	}
	venue, err := s.venues.Resolve(r.Context(), common.HexToAddress(token))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"token": token, "venue": string(venue)})
}

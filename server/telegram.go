// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/visvasity/cli"
)

func (s *Server) addTelegramCommands(ctx context.Context) error {
	cmds := []struct {
		name    string
		purpose string
		handler cli.CmdFunc
	}{
		{"status", "Prints scanner and safety status", s.statusTelegramCmd},
		{"positions", "Lists open positions", s.positionsTelegramCmd},
		{"stop", "Activates the emergency stop", s.stopTelegramCmd},
		{"resume", "Clears the emergency stop", s.resumeTelegramCmd},
		{"reload", "Reloads the pattern file", s.reloadTelegramCmd},
	}
	for _, c := range cmds {
		if err := s.telegram.AddCommand(ctx, c.name, c.purpose, c.handler); err != nil {
			return fmt.Errorf("could not add telegram command %q: %w", c.name, err)
		}
	}
	return nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, args []string) error {
	data, err := json.MarshalIndent(s.status(ctx), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "%s\n", data)
	return nil
}

func (s *Server) positionsTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	positions := s.tracker.Positions()
	if len(positions) == 0 {
		fmt.Fprintln(stdout, "no open positions")
		return nil
	}
	for _, p := range positions {
		fmt.Fprintf(stdout, "%s %s %s held=%s change=%.2f%%\n", p.UID, p.State, p.TokenAddress, p.TokenAmount, p.PriceChangePct)
	}
	return nil
}

func (s *Server) stopTelegramCmd(ctx context.Context, args []string) error {
	s.governor.SetEmergencyStop(true)
	fmt.Fprintln(cli.Stdout(ctx), "emergency stop is now active; no new trades will be dispatched")
	return nil
}

func (s *Server) resumeTelegramCmd(ctx context.Context, args []string) error {
	s.governor.SetEmergencyStop(false)
	fmt.Fprintln(cli.Stdout(ctx), "emergency stop is cleared; trading is resumed")
	return nil
}

func (s *Server) reloadTelegramCmd(ctx context.Context, args []string) error {
	if err := s.patterns.Reload(); err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "reloaded %d patterns\n", len(s.patterns.Patterns()))
	return nil
}

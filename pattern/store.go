// Copyright (c) 2025 BVK Chaitanya

package pattern

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
)

// Store holds the active pattern list. The list is immutable; Reload parses
// the pattern file again and swaps the whole list atomically so that an
// in-flight match evaluation is never interrupted.
type Store struct {
	fpath string

	patterns atomic.Pointer[[]*Pattern]
}

func NewStore(fpath string) (*Store, error) {
	s := &Store{fpath: fpath}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Patterns returns the active list ordered by priority with declaration
// order breaking ties. Callers must not modify the returned slice.
func (s *Store) Patterns() []*Pattern {
	return *s.patterns.Load()
}

func (s *Store) Reload() error {
	ps, err := LoadFile(s.fpath)
	if err != nil {
		return err
	}
	s.patterns.Store(&ps)
	return nil
}

// LoadFile parses and validates a pattern file. The returned slice is sorted
// by priority; the sort is stable so that declaration order breaks ties.
func LoadFile(fpath string) ([]*Pattern, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read pattern file %q: %w", fpath, err)
	}
	var ps []*Pattern
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("could not parse pattern file %q: %w", fpath, err)
	}
	idMap := make(map[string]bool)
	for _, p := range ps {
		if err := p.Check(); err != nil {
			return nil, err
		}
		if idMap[p.ID] {
			return nil, fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		idMap[p.ID] = true
	}
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Priority < ps[j].Priority
	})
	return ps, nil
}

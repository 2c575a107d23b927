package models

import (
	"fmt"
	"strings"
	"time"
)

// SeenState is the persisted record of news ids that have already been notified.
// The id set only grows: With returns a new state and never drops ids.
type SeenState struct {
	Symbol    string    `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	LastRunAt time.Time `json:"last_run_at" yaml:"last_run_at"`
	SeenIDs   []string  `json:"seen_ids" yaml:"seen_ids"`

	index map[string]struct{}
}

// NewSeenState creates a state for symbol containing ids (duplicates collapsed, order kept)
func NewSeenState(symbol string, ids ...string) *SeenState {
	s := &SeenState{Symbol: symbol, SeenIDs: make([]string, 0, len(ids))}
	s.index = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			continue
		}
		s.index[id] = struct{}{}
		s.SeenIDs = append(s.SeenIDs, id)
	}
	return s
}

// Has reports whether id was already notified
func (s *SeenState) Has(id string) bool {
	if s == nil {
		return false
	}
	s.ensureIndex()
	_, ok := s.index[id]
	return ok
}

// Len returns the number of seen ids
func (s *SeenState) Len() int {
	if s == nil {
		return 0
	}
	s.ensureIndex()
	return len(s.index)
}

// With returns a copy of s with ids appended (already seen ids are ignored) and LastRunAt set to at.
func (s *SeenState) With(at time.Time, ids ...string) *SeenState {
	var symbol string
	var existing []string
	if s != nil {
		symbol = s.Symbol
		existing = s.SeenIDs
	}

	all := make([]string, 0, len(existing)+len(ids))
	all = append(all, existing...)
	all = append(all, ids...)

	next := NewSeenState(symbol, all...)
	next.LastRunAt = at
	return next
}

// Validate checks the structural invariants of a decoded state
func (s *SeenState) Validate() error {
	if s == nil {
		return fmt.Errorf("state is nil")
	}
	for i, id := range s.SeenIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("seen_ids[%d] is empty", i)
		}
	}
	return nil
}

func (s *SeenState) ensureIndex() {
	if s.index != nil {
		return
	}
	s.index = make(map[string]struct{}, len(s.SeenIDs))
	for _, id := range s.SeenIDs {
		s.index[id] = struct{}{}
	}
}

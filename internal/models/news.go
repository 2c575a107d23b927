package models

import (
	"time"
)

// NewsItem is a single summary row from the SET news listing.
// Identity is ID; the listing provider guarantees uniqueness within one response.
type NewsItem struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	PublishedAt time.Time `json:"published_at"`
	DetailURL   string    `json:"detail_url"`
}

// FilterMode selects how a headline is compared against the configured filter text
type FilterMode string

const (
	// FilterModeExact requires full-string equality after trimming surrounding whitespace
	FilterModeExact FilterMode = "exact"

	// FilterModeContains requires the filter text to appear anywhere in the headline
	FilterModeContains FilterMode = "contains"
)

// Valid reports whether m is a known filter mode
func (m FilterMode) Valid() bool {
	return m == FilterModeExact || m == FilterModeContains
}

// RunSummary describes the outcome of one watcher run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Listed     int       `json:"listed"`
	Matched    int       `json:"matched"`
	Candidates int       `json:"candidates"`
	Notified   []string  `json:"notified"`
	Failed     []string  `json:"failed"`
	Committed  bool      `json:"committed"`
	DryRun     bool      `json:"dry_run"`
}

// Package watcher runs the SET buyback pipeline: list, filter, diff, extract, notify, commit.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/models"
	"github.com/ternarybob/setwatch/internal/services/headline"
	"github.com/ternarybob/setwatch/internal/services/state"
)

// Service executes one watcher run at a time
type Service struct {
	config    *common.Config
	lister    interfaces.NewsLister
	extractor interfaces.DetailExtractor
	notifier  interfaces.Notifier
	state     *state.Service
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates the run pipeline
func NewService(
	config *common.Config,
	lister interfaces.NewsLister,
	extractor interfaces.DetailExtractor,
	notifier interfaces.Notifier,
	stateService *state.Service,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		lister:    lister,
		extractor: extractor,
		notifier:  notifier,
		state:     stateService,
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs one pass. Items are processed in listing order; an item whose detail page cannot be
// fetched or whose alert cannot be delivered is skipped and left uncommitted for the next run.
// Ids that were delivered are committed once at the end. The returned error joins every item
// failure and is nil when the run completed cleanly, including when nothing was new.
func (s *Service) Run(ctx context.Context) (*models.RunSummary, error) {
	watch := s.config.Watch
	runID := common.NewRunID()
	logger := s.logger.WithCorrelationId(runID)

	summary := &models.RunSummary{
		RunID:     runID,
		Symbol:    watch.Symbol,
		StartedAt: s.now(),
		DryRun:    watch.DryRun,
	}
	defer func() { summary.FinishedAt = s.now() }()

	logger.Info().
		Str("symbol", watch.Symbol).
		Str("lang", watch.Lang).
		Int("lookback_days", watch.LookbackDays).
		Int("max_new_items", watch.MaxNewItems).
		Str("filter_mode", watch.FilterMode).
		Bool("force_send", watch.ForceSend).
		Bool("dry_run", watch.DryRun).
		Msg("Run started")

	seen, err := s.state.Load(ctx)
	if err != nil {
		return summary, err
	}

	listing, err := s.lister.List(ctx, watch.Symbol, watch.Lang, watch.LookbackDays)
	if err != nil {
		return summary, err
	}

	listed := count(listing, &summary.Listed)
	matched := count(headline.Filter(listed, watch.HeadlineFilter, models.FilterMode(watch.FilterMode)), &summary.Matched)
	candidates := state.Diff(seen, matched, watch.MaxNewItems, watch.ForceSend)
	summary.Candidates = len(candidates)

	logger.Info().
		Int("listed", summary.Listed).
		Int("matched", summary.Matched).
		Int("count", len(candidates)).
		Int("seen", seen.Len()).
		Msg("Computed new items")

	if len(candidates) == 0 {
		logger.Info().Msg("No new announcements")
		return summary, nil
	}

	var errs []error
	var delivered []string
	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("run cancelled before %s: %w", item.ID, err))
			break
		}

		if err := s.process(ctx, logger, item); err != nil {
			logger.Error().Err(err).Str("news_id", item.ID).Msg("Item skipped")
			summary.Failed = append(summary.Failed, item.ID)
			errs = append(errs, err)
			continue
		}
		delivered = append(delivered, item.ID)
	}
	summary.Notified = delivered

	switch {
	case watch.DryRun:
		logger.Info().Strs("ids", delivered).Msg("DRY_RUN enabled, state not committed")
	case len(delivered) > 0:
		// Delivered alerts must be recorded even when the run is being cancelled
		if _, err := s.state.Commit(context.WithoutCancel(ctx), seen, delivered); err != nil {
			errs = append(errs, err)
		} else {
			summary.Committed = true
		}
	}

	err = errors.Join(errs...)
	logger.Info().
		Int("notified", len(summary.Notified)).
		Int("failed", len(summary.Failed)).
		Bool("committed", summary.Committed).
		Msg("Run finished")
	return summary, err
}

// process extracts and notifies a single item
func (s *Service) process(ctx context.Context, logger arbor.ILogger, item models.NewsItem) error {
	if item.DetailURL == "" {
		return models.FormatError(models.PhaseExtract, errors.New("item has no detail url")).WithNewsID(item.ID)
	}

	logger.Debug().Str("news_id", item.ID).Str("url", item.DetailURL).Msg("Extracting detail page")
	record, err := s.extractor.Extract(ctx, item.DetailURL)
	if err != nil {
		return withNewsID(err, item.ID)
	}

	record.NewsID = item.ID
	record.Symbol = s.config.Watch.Symbol
	record.Headline = item.Headline
	record.Published = item.PublishedAt
	if record.DetailURL == "" {
		record.DetailURL = item.DetailURL
	}

	logger.Debug().
		Str("news_id", item.ID).
		Int("fields", record.PresentCount()).
		Msg("Sending notification")

	if err := s.notifier.Notify(ctx, record); err != nil {
		return withNewsID(err, item.ID)
	}
	return nil
}

// withNewsID annotates a watcher error with id unless it already names one
func withNewsID(err error, id string) error {
	var e *models.Error
	if errors.As(err, &e) {
		if e.NewsID == "" {
			e.WithNewsID(id)
		}
		return err
	}
	return fmt.Errorf("news %s: %w", id, err)
}

// count passes seq through, tallying how many items were pulled
func count(seq iter.Seq[models.NewsItem], n *int) iter.Seq[models.NewsItem] {
	return func(yield func(models.NewsItem) bool) {
		for item := range seq {
			*n++
			if !yield(item) {
				return
			}
		}
	}
}

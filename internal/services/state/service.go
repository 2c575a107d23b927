// Package state decides which news items are new and records the ones that were notified.
package state

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/models"
)

// Service loads and commits the seen state through a StateStorage
type Service struct {
	storage interfaces.StateStorage
	logger  arbor.ILogger
	symbol  string
	now     func() time.Time
}

// NewService creates a state service for symbol
func NewService(storage interfaces.StateStorage, logger arbor.ILogger, symbol string) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		symbol:  symbol,
		now:     time.Now,
	}
}

// Load returns the persisted state, or an empty state on first run.
// Present but invalid data is reported as models.ErrStateCorrupt and must be fixed by hand.
func (s *Service) Load(ctx context.Context) (*models.SeenState, error) {
	state, err := s.storage.Load(ctx)
	if err != nil {
		if errors.Is(err, models.ErrStateCorrupt) {
			return nil, err
		}
		return nil, models.StorageError(models.PhaseLoad, err)
	}

	if state == nil {
		s.logger.Info().
			Str("location", s.storage.Location()).
			Msg("No state found, starting with an empty seen set")
		return models.NewSeenState(s.symbol), nil
	}

	if err := state.Validate(); err != nil {
		return nil, models.StateCorruptError(err)
	}

	if state.Symbol != "" && state.Symbol != s.symbol {
		s.logger.Warn().
			Str("state_symbol", state.Symbol).
			Str("symbol", s.symbol).
			Msg("State was recorded for a different symbol")
	}

	s.logger.Debug().
		Str("location", s.storage.Location()).
		Int("count", state.Len()).
		Msg("Loaded seen state")

	return state, nil
}

// Commit merges ids into state, stamps lastRunAt and persists the result.
// The returned state is the one now stored; state itself is not modified.
func (s *Service) Commit(ctx context.Context, state *models.SeenState, ids []string) (*models.SeenState, error) {
	next := state.With(s.now().UTC(), ids...)
	if next.Symbol == "" {
		next.Symbol = s.symbol
	}

	if err := s.storage.Save(ctx, next); err != nil {
		return nil, models.StorageError(models.PhaseCommit, err)
	}

	s.logger.Info().
		Strs("ids", ids).
		Int("count", next.Len()).
		Str("location", s.storage.Location()).
		Msg("Committed seen state")

	return next, nil
}

// Diff returns the candidates not in state, in candidate order, capped at max (max <= 0 means no cap).
// With force set every candidate is treated as new.
func Diff(state *models.SeenState, candidates iter.Seq[models.NewsItem], max int, force bool) []models.NewsItem {
	var out []models.NewsItem
	for item := range candidates {
		if max > 0 && len(out) >= max {
			break
		}
		if !force && state.Has(item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out
}

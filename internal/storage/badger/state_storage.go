package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/setwatch/internal/models"
)

// stateRecord is the stored shape of one symbol's seen state
type stateRecord struct {
	Key       string    `json:"key"`
	Symbol    string    `json:"symbol"`
	LastRunAt time.Time `json:"last_run_at"`
	SeenIDs   []string  `json:"seen_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateStorage keeps the seen state of one symbol in a badgerhold record
type StateStorage struct {
	db     *BadgerDB
	key    string
	logger arbor.ILogger
}

// NewStateStorage creates badger-backed state for symbol. Each symbol has its own record.
func NewStateStorage(db *BadgerDB, symbol string, logger arbor.ILogger) *StateStorage {
	return &StateStorage{
		db:     db,
		key:    stateKey(symbol),
		logger: logger,
	}
}

func stateKey(symbol string) string {
	return "seen:" + strings.ToUpper(strings.TrimSpace(symbol))
}

// Load retrieves the state record, nil when none is stored yet
func (s *StateStorage) Load(ctx context.Context) (*models.SeenState, error) {
	var record stateRecord
	err := s.db.Store().Get(s.key, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, models.ErrStateCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get state %s: %w", s.key, err)
	}

	ids := record.SeenIDs
	if ids == nil {
		ids = []string{}
	}
	return &models.SeenState{
		Symbol:    record.Symbol,
		LastRunAt: record.LastRunAt,
		SeenIDs:   ids,
	}, nil
}

// Save upserts the state record in a single transaction
func (s *StateStorage) Save(ctx context.Context, state *models.SeenState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := stateRecord{
		Key:       s.key,
		Symbol:    state.Symbol,
		LastRunAt: state.LastRunAt,
		SeenIDs:   state.SeenIDs,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(s.key, &record); err != nil {
		return fmt.Errorf("failed to save state %s: %w", s.key, err)
	}

	s.logger.Debug().Str("key", s.key).Int("seen", len(state.SeenIDs)).Msg("State record saved")
	return nil
}

// Location describes the record
func (s *StateStorage) Location() string {
	return fmt.Sprintf("badger:%s#%s", s.db.Path(), s.key)
}

// Close closes the database
func (s *StateStorage) Close() error {
	return s.db.Close()
}

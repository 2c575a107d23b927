package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewNoOpLogger(), &common.BadgerStateConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewStateStorage(db, "kbank", arbor.NewNoOpLogger())
	ctx := context.Background()

	state, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	at := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, models.NewSeenState("KBANK", "a").With(at, "b")))

	state, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KBANK", state.Symbol)
	assert.Equal(t, []string{"a", "b"}, state.SeenIDs)
	assert.True(t, state.LastRunAt.Equal(at))
	assert.Contains(t, s.Location(), "seen:KBANK")
}

func TestStatePerSymbol(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	kbank := NewStateStorage(db, "KBANK", arbor.NewNoOpLogger())
	scb := NewStateStorage(db, "SCB", arbor.NewNoOpLogger())

	require.NoError(t, kbank.Save(ctx, models.NewSeenState("KBANK", "a")))

	state, err := scb.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestDecodeJSONMarksCorrupt(t *testing.T) {
	var record stateRecord
	err := decodeJSON([]byte(`{"seen_ids": 5}`), &record)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStateCorrupt)

	require.NoError(t, decodeJSON([]byte(`{"seen_ids": ["x"]}`), &record))
	assert.Equal(t, []string{"x"}, record.SeenIDs)
}

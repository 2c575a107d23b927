package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenStateWith(t *testing.T) {
	base := NewSeenState("KBANK", "a", "b", "a")
	require.Equal(t, []string{"a", "b"}, base.SeenIDs)

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	next := base.With(at, "c", "b", "d")

	assert.Equal(t, []string{"a", "b", "c", "d"}, next.SeenIDs)
	assert.Equal(t, at, next.LastRunAt)
	assert.Equal(t, "KBANK", next.Symbol)
	assert.True(t, next.Has("d"))

	// original is untouched
	assert.Equal(t, []string{"a", "b"}, base.SeenIDs)
	assert.False(t, base.Has("c"))
}

func TestSeenStateNilSafe(t *testing.T) {
	var s *SeenState
	assert.False(t, s.Has("x"))
	assert.Equal(t, 0, s.Len())

	next := s.With(time.Now(), "x")
	assert.True(t, next.Has("x"))
	assert.Equal(t, 1, next.Len())
}

func TestSeenStateDecodedWithoutIndex(t *testing.T) {
	s := &SeenState{SeenIDs: []string{"1", "2", "2"}}
	assert.True(t, s.Has("2"))
	assert.Equal(t, 2, s.Len())
}

func TestSeenStateValidate(t *testing.T) {
	assert.NoError(t, NewSeenState("KBANK", "1").Validate())
	assert.Error(t, (&SeenState{SeenIDs: []string{"1", " "}}).Validate())
}

func TestBuybackRecordPresence(t *testing.T) {
	r := NewBuybackRecord()
	assert.False(t, r.Has(FieldTotalShares))

	r.MarkPresent(FieldTotalShares)
	r.MarkPresent(FieldPeriod)
	assert.True(t, r.Has(FieldTotalShares))
	assert.Equal(t, 2, r.PresentCount())

	var empty BuybackRecord
	empty.MarkPresent(FieldReportDate)
	assert.True(t, empty.Has(FieldReportDate))
}

func TestErrorKindsAndExitCodes(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransportError(PhaseList, cause)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "phase=list")
	assert.Equal(t, ExitTransport, ExitCode(err))

	delivery := DeliveryError(cause).WithNewsID("42")
	assert.Contains(t, delivery.Error(), "news_id=42")
	assert.Equal(t, ExitDelivery, ExitCode(fmt.Errorf("run failed: %w", delivery)))

	joined := errors.Join(TransportError(PhaseExtract, cause), delivery)
	assert.Equal(t, ExitDelivery, ExitCode(joined))

	assert.Equal(t, ExitStateCorrupt, ExitCode(errors.Join(delivery, StateCorruptError(cause))))
	assert.Equal(t, ExitTransport, ExitCode(FormatError(PhaseList, cause)))
	assert.Equal(t, ExitFailure, ExitCode(ConfigError(cause)))
	assert.Equal(t, ExitFailure, ExitCode(StorageError(PhaseCommit, cause)))
	assert.Equal(t, ExitFailure, ExitCode(cause))
	assert.Equal(t, ExitOK, ExitCode(nil))
}

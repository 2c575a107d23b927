package state

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/models"
)

// MockStateStorage is a mock implementation of StateStorage
type MockStateStorage struct {
	mock.Mock
}

func (m *MockStateStorage) Load(ctx context.Context) (*models.SeenState, error) {
	args := m.Called(ctx)
	if state, ok := args.Get(0).(*models.SeenState); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateStorage) Save(ctx context.Context, state *models.SeenState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStateStorage) Location() string {
	return "mock"
}

func (m *MockStateStorage) Close() error {
	return nil
}

func items(ids ...string) []models.NewsItem {
	out := make([]models.NewsItem, len(ids))
	for i, id := range ids {
		out[i] = models.NewsItem{ID: id, Headline: "h" + id}
	}
	return out
}

func ids(items []models.NewsItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestLoadFirstRun(t *testing.T) {
	storage := new(MockStateStorage)
	storage.On("Load", mock.Anything).Return(nil, nil)

	svc := NewService(storage, arbor.NewNoOpLogger(), "KBANK")
	state, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, state.Len())
	assert.Equal(t, "KBANK", state.Symbol)
}

func TestLoadErrors(t *testing.T) {
	corrupt := models.StateCorruptError(errors.New("unexpected end of JSON input"))

	tests := []struct {
		name     string
		state    *models.SeenState
		err      error
		wantKind error
	}{
		{"corrupt from storage", nil, corrupt, models.ErrStateCorrupt},
		{"read failure", nil, errors.New("permission denied"), models.ErrStorage},
		{"blank id", &models.SeenState{SeenIDs: []string{"1", ""}}, nil, models.ErrStateCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := new(MockStateStorage)
			storage.On("Load", mock.Anything).Return(tt.state, tt.err)

			svc := NewService(storage, arbor.NewNoOpLogger(), "KBANK")
			_, err := svc.Load(context.Background())
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestCommitPersistsUnion(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	storage := new(MockStateStorage)
	storage.On("Save", mock.Anything, mock.MatchedBy(func(s *models.SeenState) bool {
		return slices.Equal(s.SeenIDs, []string{"old", "new"}) && s.LastRunAt.Equal(now) && s.Symbol == "KBANK"
	})).Return(nil).Once()

	svc := NewService(storage, arbor.NewNoOpLogger(), "KBANK")
	svc.now = func() time.Time { return now }

	prior := &models.SeenState{SeenIDs: []string{"old"}}
	next, err := svc.Commit(context.Background(), prior, []string{"new", "old"})
	require.NoError(t, err)

	assert.True(t, next.Has("new"))
	assert.False(t, prior.Has("new"))
	storage.AssertExpectations(t)
}

func TestCommitSaveFailure(t *testing.T) {
	storage := new(MockStateStorage)
	storage.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	svc := NewService(storage, arbor.NewNoOpLogger(), "KBANK")
	_, err := svc.Commit(context.Background(), models.NewSeenState("KBANK"), []string{"1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.Contains(t, err.Error(), "phase=commit")
}

func TestDiff(t *testing.T) {
	seen := models.NewSeenState("KBANK", "2", "4")

	tests := []struct {
		name       string
		candidates []models.NewsItem
		max        int
		force      bool
		want       []string
	}{
		{"skips seen keeps order", items("5", "4", "3", "2", "1"), 10, false, []string{"5", "3", "1"}},
		{"caps at max", items("5", "4", "3", "2", "1"), 2, false, []string{"5", "3"}},
		{"no cap", items("5", "3", "1"), 0, false, []string{"5", "3", "1"}},
		{"force includes seen", items("4", "3", "2"), 2, true, []string{"4", "3"}},
		{"all seen", items("2", "4"), 5, false, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(seen, slices.Values(tt.candidates), tt.max, tt.force)
			assert.Equal(t, tt.want, ids(got))
			if tt.max > 0 {
				assert.LessOrEqual(t, len(got), tt.max)
			}
		})
	}
}

func TestDiffAfterCommitExcludesCommitted(t *testing.T) {
	storage := new(MockStateStorage)
	storage.On("Save", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(storage, arbor.NewNoOpLogger(), "KBANK")

	candidates := items("7", "6", "5")
	first := Diff(models.NewSeenState("KBANK"), slices.Values(candidates), 5, false)
	require.Len(t, first, 3)

	next, err := svc.Commit(context.Background(), models.NewSeenState("KBANK"), []string{"7", "5"})
	require.NoError(t, err)

	second := Diff(next, slices.Values(candidates), 5, false)
	assert.Equal(t, []string{"6"}, ids(second))
}

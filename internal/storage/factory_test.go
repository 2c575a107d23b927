package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
)

func TestNewStateStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.State.File.Path = filepath.Join(dir, "state.json")
	cfg.State.Badger.Path = filepath.Join(dir, "db")

	s, err := NewStateStorage(arbor.NewNoOpLogger(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.State.File.Path, s.Location())
	require.NoError(t, s.Close())

	cfg.State.Type = "badger"
	s, err = NewStateStorage(arbor.NewNoOpLogger(), cfg)
	require.NoError(t, err)
	assert.Contains(t, s.Location(), "seen:KBANK")
	require.NoError(t, s.Close())

	cfg.State.Type = "sqlite"
	_, err = NewStateStorage(arbor.NewNoOpLogger(), cfg)
	assert.Error(t, err)
}

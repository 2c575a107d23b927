// Package file stores the seen-id state as a single JSON or YAML document.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/setwatch/internal/models"
)

// StateStorage keeps state in one file. Writes go to a temp file in the same directory which is
// synced and renamed over the target, so readers see either the old or the new document.
type StateStorage struct {
	path   string
	yaml   bool
	logger arbor.ILogger
}

// NewStateStorage creates file-backed state at path. A .yaml or .yml extension selects YAML.
func NewStateStorage(path string, logger arbor.ILogger) (*StateStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &StateStorage{
		path:   path,
		yaml:   ext == ".yaml" || ext == ".yml",
		logger: logger,
	}, nil
}

// Load reads the state file. A missing file is a first run.
func (s *StateStorage) Load(ctx context.Context) (*models.SeenState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug().Str("path", s.path).Msg("No state file, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, models.StateCorruptError(fmt.Errorf("state file %s is empty", s.path))
	}

	var state *models.SeenState
	if s.yaml {
		err = yaml.Unmarshal(data, &state)
	} else {
		err = json.Unmarshal(data, &state)
	}
	if err != nil {
		return nil, models.StateCorruptError(fmt.Errorf("failed to decode state file %s: %w", s.path, err))
	}
	if state == nil {
		return nil, models.StateCorruptError(fmt.Errorf("state file %s holds no document", s.path))
	}
	if state.SeenIDs == nil {
		state.SeenIDs = []string{}
	}

	s.logger.Debug().Str("path", s.path).Int("seen", len(state.SeenIDs)).Msg("State file loaded")
	return state, nil
}

// Save writes state atomically
func (s *StateStorage) Save(ctx context.Context, state *models.SeenState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.encode(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	committed = true

	// Persist the rename itself. Not every platform can sync a directory.
	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			s.logger.Debug().Err(err).Str("dir", dir).Msg("Directory sync not supported")
		}
		d.Close()
	}

	s.logger.Debug().Str("path", s.path).Int("seen", len(state.SeenIDs)).Msg("State file saved")
	return nil
}

func (s *StateStorage) encode(state *models.SeenState) ([]byte, error) {
	if s.yaml {
		data, err := yaml.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Location returns the state file path
func (s *StateStorage) Location() string {
	return s.path
}

// Close is a no-op for file storage
func (s *StateStorage) Close() error {
	return nil
}

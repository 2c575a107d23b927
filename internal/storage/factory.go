package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/storage/badger"
	"github.com/ternarybob/setwatch/internal/storage/file"
)

// NewStateStorage creates the state backend selected by config
func NewStateStorage(logger arbor.ILogger, config *common.Config) (interfaces.StateStorage, error) {
	switch config.State.Type {
	case "", "file":
		return file.NewStateStorage(config.State.File.Path, logger)
	case "badger":
		db, err := badger.NewBadgerDB(logger, &config.State.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewStateStorage(db, config.Watch.Symbol, logger), nil
	default:
		return nil, fmt.Errorf("unsupported state type: %s (expected 'file' or 'badger')", config.State.Type)
	}
}

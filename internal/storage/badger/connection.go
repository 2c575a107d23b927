package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/models"
)

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerStateConfig
}

// NewBadgerDB creates a new Badger database connection.
// Values are stored as JSON so the database can be inspected with badger tooling.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerStateConfig) (*BadgerDB, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	dir := filepath.Clean(config.Path)

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(dir).
		WithValueDir(dir).
		WithLogger(nil). // Disable default badger logger to use arbor
		WithNumVersionsToKeep(1)
	options.Encoder = json.Marshal
	options.Decoder = decodeJSON

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// decodeJSON tags undecodable values as corrupt state
func decodeJSON(data []byte, value interface{}) error {
	if err := json.Unmarshal(data, value); err != nil {
		return models.StateCorruptError(fmt.Errorf("failed to decode stored value: %w", err))
	}
	return nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Path returns the database directory
func (b *BadgerDB) Path() string {
	return b.config.Path
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

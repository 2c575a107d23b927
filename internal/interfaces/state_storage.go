// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 10:12:00 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/setwatch/internal/models"
)

// StateStorage persists the seen-id record between runs.
// Implementations decide how durability is achieved; Save must be atomic from the caller's
// point of view (either the new state is fully written or the previous one remains).
type StateStorage interface {
	// Load returns the stored state, or (nil, nil) when nothing has been stored yet.
	// Data that exists but cannot be decoded is reported with models.ErrStateCorrupt.
	Load(ctx context.Context) (*models.SeenState, error)

	// Save replaces the stored state
	Save(ctx context.Context, state *models.SeenState) error

	// Location describes where the state lives, for logging
	Location() string

	// Close releases any underlying resources
	Close() error
}

package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique id for one watcher run, used as the log correlation id
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is against any error returned by the watcher.
var (
	// ErrTransport covers network failures and non-success HTTP statuses
	ErrTransport = errors.New("transport error")

	// ErrFormat covers responses that cannot be decoded into the expected shape
	ErrFormat = errors.New("format error")

	// ErrStateCorrupt covers persisted state that exists but is structurally invalid
	ErrStateCorrupt = errors.New("state corrupt")

	// ErrDelivery covers mail relay rejections and connection failures
	ErrDelivery = errors.New("delivery error")

	// ErrConfig covers invalid or missing configuration
	ErrConfig = errors.New("configuration error")

	// ErrStorage covers state that could not be read or written for reasons other than corruption
	ErrStorage = errors.New("storage error")
)

// Phases of a run, used to give errors operator context
const (
	PhaseConfig  = "config"
	PhaseLoad    = "load_state"
	PhaseList    = "list"
	PhaseExtract = "extract"
	PhaseNotify  = "notify"
	PhaseCommit  = "commit"
)

// Process exit codes
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitTransport    = 2
	ExitStateCorrupt = 3
	ExitDelivery     = 4
)

// Error carries the kind, phase and news id of a failure along with its cause
type Error struct {
	Kind   error
	Phase  string
	NewsID string
	Err    error
}

// NewError wraps err with kind and phase
func NewError(kind error, phase string, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Err: err}
}

// WithNewsID returns e annotated with the news id it relates to
func (e *Error) WithNewsID(id string) *Error {
	e.NewsID = id
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " [phase=%s", e.Phase)
		if e.NewsID != "" {
			fmt.Fprintf(&b, " news_id=%s", e.NewsID)
		}
		b.WriteString("]")
	} else if e.NewsID != "" {
		fmt.Fprintf(&b, " [news_id=%s]", e.NewsID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// TransportError wraps err as a transport failure in phase
func TransportError(phase string, err error) *Error {
	return NewError(ErrTransport, phase, err)
}

// FormatError wraps err as a format failure in phase
func FormatError(phase string, err error) *Error {
	return NewError(ErrFormat, phase, err)
}

// StateCorruptError wraps err as a state corruption failure
func StateCorruptError(err error) *Error {
	return NewError(ErrStateCorrupt, PhaseLoad, err)
}

// DeliveryError wraps err as a mail delivery failure
func DeliveryError(err error) *Error {
	return NewError(ErrDelivery, PhaseNotify, err)
}

// StorageError wraps err as a state read/write failure in phase
func StorageError(phase string, err error) *Error {
	return NewError(ErrStorage, phase, err)
}

// ConfigError wraps err as a configuration failure
func ConfigError(err error) *Error {
	return NewError(ErrConfig, PhaseConfig, err)
}

// ExitCode maps an error returned by a run to a process exit code.
// When several kinds are joined the most severe one wins: state corruption, then delivery,
// then transport/format.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrStateCorrupt):
		return ExitStateCorrupt
	case errors.Is(err, ErrDelivery):
		return ExitDelivery
	case errors.Is(err, ErrTransport), errors.Is(err, ErrFormat):
		return ExitTransport
	default:
		return ExitFailure
	}
}

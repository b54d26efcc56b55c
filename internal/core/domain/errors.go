package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrUnsupportedSchema indicates an unknown metadata schema name.
	// Reported before any fetch; nothing is written.
	ErrUnsupportedSchema = errors.New("unsupported metadata schema")

	// ErrDatabaseRequired indicates no destination store was configured.
	ErrDatabaseRequired = errors.New("database location required")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionAnomaly marks a per-record normalization failure,
	// such as a malformed structured sub-tree. Non-fatal: the record is
	// skipped and the rest of the page proceeds.
	ErrExtractionAnomaly = errors.New("extraction anomaly")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// TransportError represents a network, timeout or malformed-response
// failure while fetching a page. It is fatal to the current invocation
// and never retried internally; re-invoking with resume continues from
// the last committed checkpoint.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError represents an error element returned by the remote
// archive. It is terminal for the affected schema: the in-flight page is
// rolled back and the error is recorded in the schema's checkpoint.
type ProtocolError struct {
	Code       string
	Message    string
	RequestURL string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oai error [%s]: %s (url: %s)", e.Code, e.Message, e.RequestURL)
}

// AsProtocolError unwraps a protocol error from err.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// AsTransportError unwraps a transport error from err.
func AsTransportError(err error) (*TransportError, bool) {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr, true
	}
	return nil, false
}

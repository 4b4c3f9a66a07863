package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound signals that a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInactive signals a submission into a session that is not active.
	ErrSessionInactive = errors.New("session is not active")
	// ErrProjectNotFound signals that a project id does not resolve.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput signals a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedCSV signals a bulk upload whose rows do not have the expected shape.
	ErrMalformedCSV = errors.New("malformed csv")
	// ErrUploadTooLarge signals a bulk upload body above the configured size.
	ErrUploadTooLarge = errors.New("upload too large")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// RowError pins a bulk import failure to a CSV line.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err.Error())
}

func (e *RowError) Unwrap() error { return e.Err }

// NewRowError wraps err with the 1-based CSV line it came from.
func NewRowError(line int, err error) error {
	return &RowError{Line: line, Err: err}
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput signals a request that failed validation before any side effect.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing resource (object, index).
	ErrNotFound = errors.New("not found")
	// ErrIndexExists signals a create request for an index that is already present.
	ErrIndexExists = errors.New("index already exists")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks failures worth retrying (rate limits, 5xx, network).
	ErrTransient = errors.New("transient failure")

	// ErrProvisioning classifies index creation failures.
	ErrProvisioning = errors.New("index provisioning failed")
	// ErrEmbedding classifies per-chunk embedding failures.
	ErrEmbedding = errors.New("embedding failed")
	// ErrUpsert classifies batch write failures.
	ErrUpsert = errors.New("upsert failed")
	// ErrQuery classifies read-path failures. Zero matches is not an error.
	ErrQuery = errors.New("query failed")
)

// ValidationError reports a required input that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a validation error for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ProvisioningError reports a failed index creation. Fatal for an ingestion run.
type ProvisioningError struct {
	Index string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: index %q: %v", ErrProvisioning, e.Index, e.Err)
}

func (e *ProvisioningError) Unwrap() []error { return []error{ErrProvisioning, e.Err} }

// EmbeddingError reports a chunk that could not be embedded.
type EmbeddingError struct {
	Sequence int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: chunk %d: %v", ErrEmbedding, e.Sequence, e.Err)
}

func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbedding, e.Err} }

// BatchError reports a batch that was not written. Start and End are the
// half-open chunk range [Start, End) covered by the batch.
type BatchError struct {
	Index string
	Batch int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: index %q batch %d chunks [%d,%d): %v",
		ErrUpsert, e.Index, e.Batch, e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() []error { return []error{ErrUpsert, e.Err} }

// QueryStage names the read-path step that failed.
type QueryStage string

// Query stages.
const (
	QueryStageEmbed  QueryStage = "embed"
	QueryStageSearch QueryStage = "search"
)

// QueryError reports a failure on the read path.
type QueryError struct {
	Index string
	Stage QueryStage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: index %q (%s): %v", ErrQuery, e.Index, e.Stage, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQuery, e.Err} }

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_-]+.
// Index names become part of Redis keys, so ':' is not allowed here.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		return !isAlpha && !isDigit && r != '_' && r != '-'
	}) < 0
}

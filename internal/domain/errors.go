package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRunActive indicates that a research run is already active for the thesis.
	ErrRunActive = errors.New("research run already active")

	// ErrNoQueries indicates that query generation produced no usable search
	// queries. This is the one fatal condition of the research pipeline.
	ErrNoQueries = errors.New("no search queries generated")
)

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// QueryParseError indicates that the query-generation LLM response could not
// be decoded against the expected schema.
type QueryParseError struct {
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *QueryParseError) Error() string {
	return fmt.Sprintf("query generation response unparsable: %s", e.Detail)
}

// Unwrap returns the underlying cause error.
func (e *QueryParseError) Unwrap() error {
	return e.Cause
}

// RankingParseError indicates that a ranking batch response could not be
// decoded. Callers absorb it with a fallback score rather than propagating.
type RankingParseError struct {
	Batch int
	Cause error
}

// Error implements the error interface.
func (e *RankingParseError) Error() string {
	return fmt.Sprintf("ranking batch %d response unparsable", e.Batch)
}

// Unwrap returns the underlying cause error.
func (e *RankingParseError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

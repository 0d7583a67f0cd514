package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation        = errors.New("validation error")
	ErrInvalidID         = errors.New("invalid ID")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyValue        = errors.New("value cannot be empty")
	ErrInvalidEntityType = errors.New("invalid entity type")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Persistence / external errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
	ErrDispatchFailed   = errors.New("event dispatch failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "catalog", "achievement"
	Op      string // Operation that failed, e.g., "Track", "Resolve"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Catalog domain errors
var (
	ErrCatalogEntityNotFound = NewDomainError("catalog", "Resolve", ErrNotFound, "catalog entity not found")
	ErrCatalogOrphanEntity   = NewDomainError("catalog", "ParentOf", ErrNotFound, "entity has no parent in catalog")
)

// Progress domain errors
var (
	ErrProgressNotFound    = NewDomainError("progress", "Get", ErrNotFound, "progress record not found")
	ErrProgressInvalidUser = NewDomainError("progress", "Validate", ErrEmptyValue, "user ID is required")
	ErrProgressInvalidKey  = NewDomainError("progress", "Validate", ErrInvalidInput, "entity ID and type are required")
)

// Achievement domain errors
var (
	ErrAchievementNotFound       = NewDomainError("achievement", "Get", ErrNotFound, "achievement not found")
	ErrAchievementAlreadyAwarded = NewDomainError("achievement", "Award", ErrAlreadyExists, "achievement already awarded")
	ErrUnknownCriterion          = NewDomainError("achievement", "Evaluate", ErrInvalidInput, "unknown achievement criterion")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrInvalidEntityType)
}

// IsRetryable checks if the operation can be retried.
// Progress tracking is idempotent, so callers may safely retry on these.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}

// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrHistoryOrdering = errors.New("history ordering violated")
	ErrTerminalState   = errors.New("entity is in a terminal state")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Infrastructure errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "lesson", "plan", "goal", "lifecycle"
	Op      string // Operation that failed, e.g., "Transition", "Map"
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

// Lesson domain errors
var (
	ErrLessonNotFound      = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrLessonAlreadyExists = NewDomainError("lesson", "Create", ErrAlreadyExists, "lesson already exists")
	ErrInvalidLessonID     = NewDomainError("lesson", "Validate", ErrInvalidID, "invalid lesson ID")
	ErrGoalNotFound        = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrGoalAlreadyExists   = NewDomainError("goal", "Create", ErrAlreadyExists, "goal already exists")
)

// Plan domain errors
var (
	ErrPlanNotFound           = NewDomainError("plan", "Find", ErrNotFound, "lesson plan not found")
	ErrPlanAlreadyExists      = NewDomainError("plan", "Create", ErrAlreadyExists, "lesson plan already exists")
	ErrMilestoneNotFound      = NewDomainError("plan", "FindMilestone", ErrNotFound, "milestone not found")
	ErrMilestoneAlreadyExists = NewDomainError("plan", "CreateMilestone", ErrAlreadyExists, "milestone already exists")
)

// ErrorCode returns the stable error code carried by err, or empty string.
// Lifecycle errors expose codes via a Code() method; the external API layer
// maps codes to wire responses without inspecting concrete error types.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

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
		errors.Is(err, ErrFutureTimestamp)
}

// IsConcurrent checks if the error is a lost concurrency race.
func IsConcurrent(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsRetryable checks if the operation can be retried as-is. Lost transition
// races are excluded on purpose: the caller must first re-read the current
// status before retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// Package shared contains the error kinds used across the observer's packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidID    = errors.New("invalid ID")

	// Collaborator errors
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "platform", "xp"
	Op      string // Operation that failed, e.g., "HasCapability"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the base kind for errors.Is() and errors.As().
func (e *DomainError) Unwrap() error {
	return e.Kind
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

// Platform errors
var (
	ErrContextNotFound = NewDomainError("platform", "HasCapability", ErrNotFound, "context not found")
	ErrUnknownTable    = NewDomainError("platform", "DeleteByCourse", ErrInvalidInput, "table is not a course data table")
	ErrInvalidCourseID = NewDomainError("platform", "Validate", ErrInvalidID, "invalid course ID")
)

// XP manager errors
var (
	ErrManagerUnavailable = NewDomainError("xp", "ManagerFor", ErrServiceUnavailable, "no manager available for course")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidID)
}

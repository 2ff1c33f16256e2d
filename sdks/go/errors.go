package opsgate

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrActionRejected is returned when the policy engine refuses an action.
	ErrActionRejected = errors.New("action rejected")

	// ErrNotAuthorized is returned when the principal lacks a required capability.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrServerUnreachable is returned when the opsgate server cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// APIError is the base error type for unexpected server responses.
type APIError struct {
	// StatusCode is the HTTP status the server returned.
	StatusCode int
	// Body is the raw response body.
	Body string
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("opsgate: server returned %d: %s", e.StatusCode, e.Body)
}

// ActionRejectedError is returned when a submitted action fails an admission
// check. Rejected actions are never executed and never recorded in history.
type ActionRejectedError struct {
	// Kind is the rejected action kind.
	Kind string
	// Reason identifies the failing check (e.g., "policy_disabled",
	// "confidence_below_threshold", "rate_limit_exceeded").
	Reason string
	// Detail is an optional human-readable elaboration.
	Detail string
}

// Error returns a human-readable description of the rejection.
func (e *ActionRejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("action %s rejected: %s (%s)", e.Kind, e.Reason, e.Detail)
	}
	return fmt.Sprintf("action %s rejected: %s", e.Kind, e.Reason)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrActionRejected).
func (e *ActionRejectedError) Is(target error) bool {
	return target == ErrActionRejected
}

// AuthorizationError is returned when the API key's identity lacks a
// capability the operation requires.
type AuthorizationError struct {
	// Category is the operation category the request classified into.
	Category string
	// Missing lists the capabilities the identity does not hold.
	Missing []string
}

// Error returns a human-readable description of the authorization failure.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized for %s: missing %s",
		e.Category, strings.Join(e.Missing, ", "))
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrNotAuthorized).
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrNotAuthorized
}

// ServerUnreachableError is returned when the opsgate server cannot be contacted.
type ServerUnreachableError struct {
	// Cause is the underlying transport error.
	Cause error
}

// Error returns a human-readable description of the failure.
func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}

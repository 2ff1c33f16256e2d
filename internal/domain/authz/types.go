// Package authz contains the domain types and logic for capability-based
// authorization of agent operations.
package authz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Capability represents a named permission a principal may hold.
type Capability string

const (
	// CapabilityRead allows read-style operations (status, queries, reports).
	CapabilityRead Capability = "read"
	// CapabilityIncident allows incident investigation and reporting.
	CapabilityIncident Capability = "incident"
	// CapabilityAlert allows alert monitoring and correlation.
	CapabilityAlert Capability = "alert"
	// CapabilityAction allows submitting remediation actions.
	CapabilityAction Capability = "action"
	// CapabilityMetrics allows metric and performance analysis.
	CapabilityMetrics Capability = "metrics"
	// CapabilityAdmin allows administrative operations (key management).
	CapabilityAdmin Capability = "admin"
)

// IsValid returns true if the capability is a known valid capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityRead, CapabilityIncident, CapabilityAlert,
		CapabilityAction, CapabilityMetrics, CapabilityAdmin:
		return true
	default:
		return false
	}
}

// Principal represents an authenticated caller for the duration of one
// request. Principals carry no session state between requests.
type Principal struct {
	// ID is the unique identifier for this principal.
	ID string
	// Name is the display name for this principal.
	Name string
	// Capabilities are the capabilities granted to this principal.
	Capabilities []Capability
}

// HasCapability returns true if the principal holds the given capability.
func (p *Principal) HasCapability(c Capability) bool {
	for _, granted := range p.Capabilities {
		if granted == c {
			return true
		}
	}
	return false
}

// Missing returns the subset of required capabilities the principal does not
// hold, in the order required lists them.
func (p *Principal) Missing(required []Capability) []Capability {
	var missing []Capability
	for _, c := range required {
		if !p.HasCapability(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ErrNotAuthorized is the sentinel for authorization failures.
// Use errors.Is(err, ErrNotAuthorized) to detect them.
var ErrNotAuthorized = errors.New("not authorized")

// AuthorizationError reports a failed capability check. It is recoverable:
// the caller may re-request with a principal holding the missing capabilities.
type AuthorizationError struct {
	// PrincipalID identifies the rejected principal.
	PrincipalID string
	// Category is the operation category the request classified into.
	Category Category
	// Required is the full capability set the operation requires.
	Required []Capability
	// Missing is the subset of Required the principal does not hold.
	Missing []Capability
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("principal %q missing capabilities: %s",
		e.PrincipalID, strings.Join(names, ", "))
}

// Unwrap returns ErrNotAuthorized so errors.Is works.
func (e *AuthorizationError) Unwrap() error {
	return ErrNotAuthorized
}

// Identity represents a configured user or service able to authenticate.
type Identity struct {
	// ID is the unique identifier for this identity.
	ID string
	// Name is the display name for this identity.
	Name string
	// Capabilities are the capabilities granted to this identity.
	Capabilities []Capability
}

// Principal returns the request-scoped principal for this identity.
func (i *Identity) Principal() Principal {
	caps := make([]Capability, len(i.Capabilities))
	copy(caps, i.Capabilities)
	return Principal{ID: i.ID, Name: i.Name, Capabilities: caps}
}

// APIKey represents an API key credential mapped to an identity.
type APIKey struct {
	// Key is the hashed key value (SHA-256 hex or Argon2id PHC format).
	Key string
	// IdentityID maps this key to an Identity.
	IdentityID string
	// Name is a human-readable label for this key.
	Name string
	// CreatedAt is when the key was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the key expires (nil = never expires).
	ExpiresAt *time.Time
	// Revoked indicates if the key has been revoked.
	Revoked bool
}

// IsExpired returns true if the API key has expired.
// A key with nil ExpiresAt never expires.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*k.ExpiresAt)
}

// Package audit contains domain types for audit logging.
package audit

import "time"

// Outcome constants for audit records.
const (
	// OutcomeAdmitted indicates the action passed all policy checks.
	OutcomeAdmitted = "admitted"
	// OutcomeRejected indicates the action was refused by policy.
	OutcomeRejected = "rejected"
	// OutcomeAuthorized indicates the principal held the required capabilities.
	OutcomeAuthorized = "authorized"
	// OutcomeDenied indicates the principal lacked a required capability.
	OutcomeDenied = "denied"
)

// EventType constants categorize audit records.
const (
	// EventTypeActionDecision records a policy engine admission decision.
	EventTypeActionDecision = "action.decision"
	// EventTypeAuthorization records a capability check on an incoming query.
	EventTypeAuthorization = "access.authorization"
	// EventTypeAPIKeyCreate records API key provisioning.
	EventTypeAPIKeyCreate = "access.api_key_create"
	// EventTypeAPIKeyRevoke records API key revocation.
	EventTypeAPIKeyRevoke = "access.api_key_revoke"
)

// Record is a single audit event. Records are append-only; fields that do
// not apply to the event type are left zero and omitted from serialization.
type Record struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// EventType categorizes the event (action.*, access.*).
	EventType string `json:"event_type"`
	// RequestID for correlation across systems.
	RequestID string `json:"request_id,omitempty"`
	// PrincipalID identifies who initiated the request.
	PrincipalID string `json:"principal_id,omitempty"`

	// Authorization fields
	Category string   `json:"category,omitempty"`
	Required []string `json:"required,omitempty"`
	Missing  []string `json:"missing,omitempty"`

	// Action decision fields
	ActionKind string  `json:"action_kind,omitempty"`
	IncidentID string  `json:"incident_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	RecordID   string  `json:"record_id,omitempty"`
	// Success reports the handler outcome for admitted actions.
	// Nil when the action never executed.
	Success *bool `json:"success,omitempty"`

	// Outcome is the decision result (admitted, rejected, authorized, denied).
	Outcome string `json:"outcome"`
	// Reason holds the rejection or denial reason, empty on success.
	Reason string `json:"reason,omitempty"`
	// LatencyMicros is the end-to-end decision latency in microseconds.
	LatencyMicros int64 `json:"latency_us,omitempty"`
}

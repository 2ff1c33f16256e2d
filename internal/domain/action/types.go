// Package action contains domain types for automated remediation actions.
package action

import (
	"fmt"
	"time"
)

// Kind identifies one of the fixed set of automated actions. The set is
// closed: dispatch is over these variants, not an open plugin system.
type Kind string

const (
	// KindSummarizeIncident produces an incident summary.
	KindSummarizeIncident Kind = "summarize_incident"
	// KindProposeRemediation produces an ordered remediation plan.
	KindProposeRemediation Kind = "propose_remediation"
	// KindTriggerAutoRollback initiates a deployment rollback.
	KindTriggerAutoRollback Kind = "trigger_auto_rollback"
	// KindOpenTicket opens a ticket in the ticketing system.
	KindOpenTicket Kind = "open_ticket"
	// KindOpenChatChannel opens an incident chat channel.
	KindOpenChatChannel Kind = "open_chat_channel"
	// KindScaleService scales a service via the infra orchestrator.
	KindScaleService Kind = "scale_service"
	// KindRestartService restarts a service via the infra orchestrator.
	KindRestartService Kind = "restart_service"
	// KindUpdateConfig updates service configuration via the orchestrator.
	KindUpdateConfig Kind = "update_config"
)

// Kinds returns all valid action kinds in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindSummarizeIncident,
		KindProposeRemediation,
		KindTriggerAutoRollback,
		KindOpenTicket,
		KindOpenChatChannel,
		KindScaleService,
		KindRestartService,
		KindUpdateConfig,
	}
}

// IsValid returns true if the kind is a known valid action kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindSummarizeIncident, KindProposeRemediation, KindTriggerAutoRollback,
		KindOpenTicket, KindOpenChatChannel, KindScaleService,
		KindRestartService, KindUpdateConfig:
		return true
	default:
		return false
	}
}

// ParseKind converts a string to a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

// Request is a proposed automated action. Immutable once submitted.
type Request struct {
	// Kind is the action variant to execute.
	Kind Kind
	// Parameters carry the variant-specific inputs.
	Parameters map[string]any
	// Confidence is the caller-supplied score in [0,1] backing this action.
	Confidence float64
	// IncidentID optionally links the action to its originating incident.
	// Idempotent resubmission is the caller's responsibility via this field.
	IncidentID string
}

// NewRequest builds a Request, validating the kind, the confidence range,
// and the declared types of recognized parameters. Presence of
// handler-required parameters (like the rollback deployment_id) is checked
// during execution so the failure lands in the action history.
func NewRequest(kind Kind, params map[string]any, confidence float64, incidentID string) (Request, error) {
	if !kind.IsValid() {
		return Request{}, fmt.Errorf("unknown action kind %q", kind)
	}
	if confidence < 0 || confidence > 1 {
		return Request{}, fmt.Errorf("confidence %v outside [0,1]", confidence)
	}
	if err := validateParamTypes(params); err != nil {
		return Request{}, fmt.Errorf("action %s: %w", kind, err)
	}

	copied := make(map[string]any, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return Request{
		Kind:       kind,
		Parameters: copied,
		Confidence: confidence,
		IncidentID: incidentID,
	}, nil
}

// validateParamTypes rejects values of the wrong type for well-known
// parameter names shared across handlers.
func validateParamTypes(params map[string]any) error {
	for _, name := range []string{"incident_id", "deployment_id", "service", "severity"} {
		if v, ok := params[name]; ok {
			if _, isString := v.(string); !isString {
				return fmt.Errorf("parameter %q must be a string, got %T", name, v)
			}
		}
	}
	if v, ok := params["affected_services"]; ok {
		switch v.(type) {
		case []string, []any:
		default:
			return fmt.Errorf("parameter affected_services must be a list, got %T", v)
		}
	}
	return nil
}

// StringParam returns the named string parameter, or "" if absent.
func (r Request) StringParam(name string) string {
	if v, ok := r.Parameters[name].(string); ok {
		return v
	}
	return ""
}

// Result is the terminal outcome of an executed action.
type Result struct {
	// Success reports whether the handler completed without failure.
	Success bool `json:"success"`
	// Payload is the handler's structured output on success.
	Payload map[string]any `json:"payload,omitempty"`
	// Error carries the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Record is an executed action's append-only history entry. Records are
// created once per admitted action and never mutated afterward.
type Record struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`
	// Kind is the executed action variant.
	Kind Kind `json:"kind"`
	// Parameters are the inputs the action ran with.
	Parameters map[string]any `json:"parameters,omitempty"`
	// IncidentID links back to the originating incident, when known.
	IncidentID string `json:"incident_id,omitempty"`
	// Confidence is the score the action was admitted with.
	Confidence float64 `json:"confidence"`
	// Result is the action's real outcome, success or failure.
	Result Result `json:"result"`
	// ExecutedAt is when the action ran (UTC).
	ExecutedAt time.Time `json:"executed_at"`
}

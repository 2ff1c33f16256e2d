// Package opsgate provides a Go SDK for the opsgate agent gateway API.
//
// opsgate gates an SRE agent's observability reads and remediation actions.
// This SDK lets Go programs call the gateway's operations and submit actions
// for admission. It uses only the Go standard library (net/http) with zero
// external dependencies.
//
// Quick start:
//
//	// Set OPSGATE_SERVER_ADDR and OPSGATE_API_KEY env vars, then:
//	client := opsgate.NewClient()
//
//	rec, err := client.ExecuteAction(ctx, opsgate.ActionRequest{
//	    ActionType: "restart_service",
//	    Parameters: map[string]any{"service": "checkout"},
//	    Confidence: 0.92,
//	    IncidentID: "INC-42",
//	})
//	if err != nil {
//	    var rejected *opsgate.ActionRejectedError
//	    if errors.As(err, &rejected) {
//	        fmt.Printf("Rejected: %s\n", rejected.Reason)
//	    }
//	}
package opsgate

// ActionRequest is a proposed remediation action submitted for admission.
type ActionRequest struct {
	// ActionType identifies the action kind (e.g., "restart_service",
	// "scale_service", "open_ticket").
	ActionType string `json:"action_type"`

	// Parameters are action-specific key-value arguments.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Confidence is the agent's confidence in the action (0..1). Actions
	// below the server's threshold are rejected.
	Confidence float64 `json:"confidence"`

	// IncidentID optionally links the action to an incident.
	IncidentID string `json:"incident_id,omitempty"`
}

// ActionResult is the execution outcome embedded in an ActionRecord.
type ActionResult struct {
	// Success reports whether the action's handler completed without error.
	Success bool `json:"success"`

	// Payload is the handler's structured output.
	Payload map[string]any `json:"payload,omitempty"`

	// Error describes the handler failure when Success is false.
	Error string `json:"error,omitempty"`
}

// ActionRecord is the history record of an admitted and executed action.
type ActionRecord struct {
	// ID is the record's unique identifier.
	ID string `json:"id"`

	// Kind is the executed action kind.
	Kind string `json:"kind"`

	// Parameters are the arguments the action ran with.
	Parameters map[string]any `json:"parameters,omitempty"`

	// IncidentID links the action to an incident, if any.
	IncidentID string `json:"incident_id,omitempty"`

	// Confidence is the confidence the action was submitted with.
	Confidence float64 `json:"confidence"`

	// Result is the execution outcome.
	Result ActionResult `json:"result"`

	// ExecutedAt is the ISO 8601 timestamp of execution.
	ExecutedAt string `json:"executed_at"`
}

// Insight is one cached observability insight.
type Insight struct {
	// Key identifies the insight (e.g., "health_check").
	Key string `json:"key"`

	// Value is the cached structured payload.
	Value any `json:"value"`
}

// rejectionResponse is the wire shape of a 409 policy rejection.
type rejectionResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// authzResponse is the wire shape of a 403 authorization failure.
type authzResponse struct {
	Error    string   `json:"error"`
	Category string   `json:"category"`
	Missing  []string `json:"missing"`
}

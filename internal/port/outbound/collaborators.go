// Package outbound defines the outbound port interfaces for the external
// collaborators the gateway invokes: observability backends, LLM inference,
// ticketing, chat, and the infrastructure orchestrator.
package outbound

import (
	"context"
	"time"
)

// ObservabilityResult is the opaque structured result of a backend query.
// The core never interprets it; it is cached and passed through.
type ObservabilityResult struct {
	// Source names the backend that produced the data.
	Source string `json:"source"`
	// Data is the backend's structured response.
	Data any `json:"data"`
	// RetrievedAt is when the query completed (UTC).
	RetrievedAt time.Time `json:"retrieved_at"`
}

// ObservabilitySource queries one observability backend (metrics, logs,
// traces, synthetic checks). Implementations do their own I/O; callers must
// never hold locks across Query.
type ObservabilitySource interface {
	// Name identifies the backend (e.g. "prometheus", "elasticsearch").
	Name() string

	// Query runs a backend-specific query over the given timeframe.
	Query(ctx context.Context, query, timeframe string) (ObservabilityResult, error)
}

// InferenceClient produces text completions from a language model.
// Used upstream of the policy engine for confidence scores and proposals.
type InferenceClient interface {
	// Infer returns the model's completion for the prompt.
	Infer(ctx context.Context, prompt string) (string, error)
}

// Ticket is the result of creating an external ticket.
type Ticket struct {
	// ID is the ticketing system's identifier.
	ID string `json:"id"`
	// URL links to the ticket.
	URL string `json:"url"`
}

// Ticketer creates tickets in an external ticketing system.
type Ticketer interface {
	// CreateTicket opens a ticket with the given fields.
	CreateTicket(ctx context.Context, fields map[string]any) (Ticket, error)
}

// Channel is the result of opening an external chat channel.
type Channel struct {
	// Name is the channel name.
	Name string `json:"name"`
	// Reference is the webhook or target reference for posting.
	Reference string `json:"reference"`
}

// ChannelOpener opens incident chat channels.
type ChannelOpener interface {
	// OpenChannel creates (or reuses) a channel with the given fields.
	OpenChannel(ctx context.Context, fields map[string]any) (Channel, error)
}

// Orchestrator performs infrastructure mutations. The policy engine's
// responsibility ends at invoking it and recording the outcome.
type Orchestrator interface {
	// ScaleService changes the replica count of a service.
	ScaleService(ctx context.Context, service string, replicas int) (map[string]any, error)

	// RestartService restarts a service.
	RestartService(ctx context.Context, service string) (map[string]any, error)

	// UpdateConfig applies configuration changes to a service.
	UpdateConfig(ctx context.Context, service string, changes map[string]any) (map[string]any, error)
}

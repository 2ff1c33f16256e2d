package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/port/outbound"
)

// Handlers holds the per-kind action handlers and the external collaborators
// the side-effecting ones delegate to.
type Handlers struct {
	ticketer     outbound.Ticketer
	channels     outbound.ChannelOpener
	orchestrator outbound.Orchestrator
}

// NewHandlers creates the handler set.
func NewHandlers(ticketer outbound.Ticketer, channels outbound.ChannelOpener, orchestrator outbound.Orchestrator) *Handlers {
	return &Handlers{
		ticketer:     ticketer,
		channels:     channels,
		orchestrator: orchestrator,
	}
}

// Dispatch routes an admitted request to its kind's handler. The kind set is
// closed; an unknown kind here means a Request bypassed construction checks.
func (h *Handlers) Dispatch(ctx context.Context, req action.Request) (map[string]any, error) {
	switch req.Kind {
	case action.KindSummarizeIncident:
		return h.summarizeIncident(req)
	case action.KindProposeRemediation:
		return h.proposeRemediation(req)
	case action.KindTriggerAutoRollback:
		return h.triggerAutoRollback(req)
	case action.KindOpenTicket:
		return h.openTicket(ctx, req)
	case action.KindOpenChatChannel:
		return h.openChatChannel(ctx, req)
	case action.KindScaleService:
		return h.scaleService(ctx, req)
	case action.KindRestartService:
		return h.restartService(ctx, req)
	case action.KindUpdateConfig:
		return h.updateConfig(ctx, req)
	default:
		return nil, fmt.Errorf("no handler for action kind %q", req.Kind)
	}
}

// summarizeIncident always succeeds given well-formed parameters.
func (h *Handlers) summarizeIncident(req action.Request) (map[string]any, error) {
	incidentID := req.StringParam("incident_id")
	if incidentID == "" {
		incidentID = req.IncidentID
	}
	if incidentID == "" {
		incidentID = "unknown"
	}
	severity := req.StringParam("severity")
	if severity == "" {
		severity = "medium"
	}
	affected := req.Parameters["affected_services"]
	if affected == nil {
		affected = []string{}
	}
	return map[string]any{
		"summary":           fmt.Sprintf("Incident summary for %s", incidentID),
		"severity":          severity,
		"affected_services": affected,
	}, nil
}

// proposeRemediation always succeeds.
func (h *Handlers) proposeRemediation(req action.Request) (map[string]any, error) {
	steps := []string{
		"Restart affected service",
		"Scale up resources if needed",
		"Update monitoring thresholds",
	}
	if svc := req.StringParam("service"); svc != "" {
		steps[0] = fmt.Sprintf("Restart %s", svc)
	}
	return map[string]any{
		"steps":          steps,
		"estimated_time": "15 minutes",
	}, nil
}

// triggerAutoRollback fails when the deployment target is absent, so the
// failure lands in the action history.
func (h *Handlers) triggerAutoRollback(req action.Request) (map[string]any, error) {
	deploymentID := req.StringParam("deployment_id")
	if deploymentID == "" {
		return nil, fmt.Errorf("%w: deployment_id required", action.ErrRemediationTargetMissing)
	}
	return map[string]any{
		"rollback_target": deploymentID,
		"status":          "rollback_initiated",
	}, nil
}

// openTicket delegates ticket creation to the ticketing collaborator.
// Ticket ID uniqueness per call is the collaborator's contract.
func (h *Handlers) openTicket(ctx context.Context, req action.Request) (map[string]any, error) {
	fields := map[string]any{
		"incident_id": req.StringParam("incident_id"),
		"severity":    req.StringParam("severity"),
		"summary":     req.StringParam("summary"),
	}
	ticket, err := h.ticketer.CreateTicket(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return map[string]any{
		"ticket_id": ticket.ID,
		"url":       ticket.URL,
	}, nil
}

// openChatChannel derives the channel name deterministically from the
// incident and delegates creation to the chat collaborator.
func (h *Handlers) openChatChannel(ctx context.Context, req action.Request) (map[string]any, error) {
	incidentID := req.StringParam("incident_id")
	if incidentID == "" {
		incidentID = req.IncidentID
	}
	if incidentID == "" {
		incidentID = "unknown"
	}
	name := "incident-" + strings.ToLower(incidentID)

	channel, err := h.channels.OpenChannel(ctx, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return map[string]any{
		"channel_name": channel.Name,
		"webhook_url":  channel.Reference,
	}, nil
}

// scaleService delegates the infrastructure mutation to the orchestrator.
func (h *Handlers) scaleService(ctx context.Context, req action.Request) (map[string]any, error) {
	service := req.StringParam("service")
	if service == "" {
		return nil, fmt.Errorf("service parameter required")
	}
	replicas := intParam(req.Parameters, "replicas", 1)
	return h.orchestrator.ScaleService(ctx, service, replicas)
}

// restartService delegates the infrastructure mutation to the orchestrator.
func (h *Handlers) restartService(ctx context.Context, req action.Request) (map[string]any, error) {
	service := req.StringParam("service")
	if service == "" {
		return nil, fmt.Errorf("service parameter required")
	}
	return h.orchestrator.RestartService(ctx, service)
}

// updateConfig delegates the configuration change to the orchestrator.
func (h *Handlers) updateConfig(ctx context.Context, req action.Request) (map[string]any, error) {
	service := req.StringParam("service")
	if service == "" {
		return nil, fmt.Errorf("service parameter required")
	}
	changes, _ := req.Parameters["changes"].(map[string]any)
	if len(changes) == 0 {
		return nil, fmt.Errorf("changes parameter required")
	}
	return h.orchestrator.UpdateConfig(ctx, service, changes)
}

// intParam reads an integer parameter, tolerating JSON's float64 decoding.
func intParam(params map[string]any, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

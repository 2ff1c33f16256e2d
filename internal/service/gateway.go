// Package service contains the application services composing the domain:
// the agent gateway orchestrating authorization, caching, and the action
// policy engine, and the stats service for runtime introspection.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/audit"
	"github.com/opsgate/opsgate/internal/domain/authz"
	"github.com/opsgate/opsgate/internal/domain/insight"
	"github.com/opsgate/opsgate/internal/domain/policy"
	"github.com/opsgate/opsgate/internal/port/outbound"
)

// Cache TTLs per insight kind.
const (
	healthCheckTTL   = 30 * time.Minute
	investigationTTL = 2 * time.Hour
	trendsTTL        = time.Hour
)

// Insight cache keys.
const (
	keyHealthCheck   = "health_check"
	keyInvestigation = "incident_investigation"
	keyTrends        = "trend_analysis"
)

// Gateway is the composition boundary in front of the domain: it authorizes
// every operation, serves read-style operations from the insight cache or
// the external collaborators, and routes action-style operations through the
// policy engine. It is the only component that talks to collaborators.
type Gateway struct {
	resolver  *authz.Resolver
	engine    *policy.Engine
	cache     *insight.Cache
	sources   []outbound.ObservabilitySource
	inference outbound.InferenceClient
	auditor   audit.Store
	logger    *slog.Logger
	now       func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithSources sets the observability sources queried on cache misses.
func WithSources(sources ...outbound.ObservabilitySource) GatewayOption {
	return func(g *Gateway) { g.sources = sources }
}

// WithInference sets the LLM inference collaborator.
func WithInference(client outbound.InferenceClient) GatewayOption {
	return func(g *Gateway) { g.inference = client }
}

// WithAuditor installs an authorization audit trail.
func WithAuditor(s audit.Store) GatewayOption {
	return func(g *Gateway) { g.auditor = s }
}

// WithClock replaces the gateway time source. Used by tests.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway creates a Gateway over the given resolver, engine, and cache.
func NewGateway(resolver *authz.Resolver, engine *policy.Engine, cache *insight.Cache, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		resolver: resolver,
		engine:   engine,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// authorize classifies the query and checks the principal's capabilities.
// Authorization failures return before any cache or engine state is touched.
func (g *Gateway) authorize(ctx context.Context, principal authz.Principal, query string) (authz.Classification, error) {
	cls := g.resolver.Classify(query)
	err := g.resolver.Authorize(principal, cls)
	g.auditAuthorization(ctx, principal, cls, err)
	if err != nil {
		g.logger.Info("authorization denied",
			"principal", principal.ID,
			"category", cls.Category,
			"query", query,
		)
		return cls, err
	}
	return cls, nil
}

// HealthCheck reports overall system health, served from cache when a
// recent check exists.
func (g *Gateway) HealthCheck(ctx context.Context, principal authz.Principal) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "system health check"); err != nil {
		return nil, err
	}

	if cached, ok := g.cache.Get(keyHealthCheck); ok {
		return withCacheFlag(cached, true), nil
	}

	observations := g.querySources(ctx, "overall system health", "1h")
	result := map[string]any{
		"timestamp":    g.now().UTC().Format(time.RFC3339),
		"observations": observations,
		"status":       "healthy",
	}
	if summary, err := g.infer(ctx, fmt.Sprintf("Assess system health from these observations: %v", observations)); err == nil {
		result["summary"] = summary
	}

	g.cache.Store(keyHealthCheck, result, healthCheckTTL)
	return withCacheFlag(result, false), nil
}

// InvestigateIncident analyzes an incident description, caching the
// investigation so follow-up operations can reuse it.
func (g *Gateway) InvestigateIncident(ctx context.Context, principal authz.Principal, description string) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "investigate incident: "+description); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, fmt.Errorf("incident description required")
	}

	if cached, ok := g.cache.Get(keyInvestigation); ok {
		return withCacheFlag(cached, true), nil
	}

	observations := g.querySources(ctx, description, "1h")
	result := map[string]any{
		"timestamp":    g.now().UTC().Format(time.RFC3339),
		"incident":     description,
		"observations": observations,
	}
	if analysis, err := g.infer(ctx, fmt.Sprintf("Investigate this incident: %s\nObservations: %v", description, observations)); err == nil {
		result["analysis"] = analysis
	}

	g.cache.Store(keyInvestigation, result, investigationTTL)
	return withCacheFlag(result, false), nil
}

// MonitorAlerts queries the observability sources for active alerts.
// Alert state is inherently volatile, so results are never cached.
func (g *Gateway) MonitorAlerts(ctx context.Context, principal authz.Principal) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "monitor active alerts"); err != nil {
		return nil, err
	}

	observations := g.querySources(ctx, "active alerts", "1h")
	return map[string]any{
		"timestamp": g.now().UTC().Format(time.RFC3339),
		"alerts":    observations,
	}, nil
}

// AnalyzeTrends analyzes a metric over a timeframe, caching the analysis.
func (g *Gateway) AnalyzeTrends(ctx context.Context, principal authz.Principal, metric, timeframe string) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "analyze "+metric+" performance trend"); err != nil {
		return nil, err
	}
	if metric == "" {
		return nil, fmt.Errorf("metric required")
	}
	if timeframe == "" {
		timeframe = "7d"
	}

	if cached, ok := g.cache.Get(keyTrends); ok {
		return withCacheFlag(cached, true), nil
	}

	observations := g.querySources(ctx, metric, timeframe)
	result := map[string]any{
		"timestamp":    g.now().UTC().Format(time.RFC3339),
		"metric":       metric,
		"timeframe":    timeframe,
		"observations": observations,
	}
	if analysis, err := g.infer(ctx, fmt.Sprintf("Analyze the trend of %s over %s: %v", metric, timeframe, observations)); err == nil {
		result["analysis"] = analysis
	}

	g.cache.Store(keyTrends, result, trendsTTL)
	return withCacheFlag(result, false), nil
}

// SuggestRemediation proposes remediation steps for an issue. Suggestions
// are advisory; nothing is executed.
func (g *Gateway) SuggestRemediation(ctx context.Context, principal authz.Principal, issue string) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "suggest remediation for issue"); err != nil {
		return nil, err
	}
	if issue == "" {
		return nil, fmt.Errorf("issue description required")
	}

	result := map[string]any{
		"timestamp": g.now().UTC().Format(time.RFC3339),
		"issue":     issue,
	}
	suggestion, err := g.infer(ctx, "Suggest remediation steps for: "+issue)
	if err != nil {
		return nil, fmt.Errorf("remediation inference: %w", err)
	}
	result["suggestion"] = suggestion
	return result, nil
}

// GenerateIncidentReport composes a report for an incident, folding in any
// cached investigation.
func (g *Gateway) GenerateIncidentReport(ctx context.Context, principal authz.Principal, incidentID, timeframe string) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "generate incident report"); err != nil {
		return nil, err
	}
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id required")
	}
	if timeframe == "" {
		timeframe = "24h"
	}

	result := map[string]any{
		"timestamp":   g.now().UTC().Format(time.RFC3339),
		"incident_id": incidentID,
		"timeframe":   timeframe,
	}
	if investigation, ok := g.cache.Get(keyInvestigation); ok {
		result["investigation"] = investigation
	}
	if report, err := g.infer(ctx, fmt.Sprintf("Write an incident report for %s over %s. Investigation: %v", incidentID, timeframe, result["investigation"])); err == nil {
		result["report"] = report
	}
	return result, nil
}

// ExecuteAction authorizes and submits an action to the policy engine,
// returning the engine's outcome verbatim. The authorization label is
// kind-independent: every kind requires the action capability, so a kind
// name like "summarize_incident" must not steer classification into another
// category.
func (g *Gateway) ExecuteAction(ctx context.Context, principal authz.Principal, kind string, params map[string]any, confidence float64, incidentID string) (action.Record, error) {
	if _, err := g.authorize(ctx, principal, "execute remediation action"); err != nil {
		return action.Record{}, err
	}

	parsed, err := action.ParseKind(kind)
	if err != nil {
		return action.Record{}, err
	}
	req, err := action.NewRequest(parsed, params, confidence, incidentID)
	if err != nil {
		return action.Record{}, err
	}
	return g.engine.Submit(ctx, req)
}

// Insight returns one cached insight by key.
func (g *Gateway) Insight(ctx context.Context, principal authz.Principal, key string) (any, bool, error) {
	if _, err := g.authorize(ctx, principal, "read cached insight"); err != nil {
		return nil, false, err
	}
	v, ok := g.cache.Get(key)
	return v, ok, nil
}

// Status reports the state of the gateway's components.
func (g *Gateway) Status(ctx context.Context, principal authz.Principal) (map[string]any, error) {
	if _, err := g.authorize(ctx, principal, "component status"); err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(g.sources))
	for _, s := range g.sources {
		sources = append(sources, s.Name())
	}
	cfg := g.engine.Config()
	engineStatus := map[string]any{
		"auto_remediation_enabled": cfg.AutoRemediationEnabled,
		"confidence_threshold":     cfg.ConfidenceThreshold,
		"max_actions_per_window":   cfg.MaxActionsPerWindow,
		"window":                   cfg.Window.String(),
	}
	if n, err := g.engine.RecordedInWindow(ctx); err == nil {
		engineStatus["actions_in_window"] = n
	} else {
		g.logger.Warn("history window count failed", "error", err)
	}
	return map[string]any{
		"policy_engine": engineStatus,
		"insight_cache": map[string]any{
			"entries": g.cache.Len(),
		},
		"observability": map[string]any{
			"sources": sources,
		},
		"inference": map[string]any{
			"configured": g.inference != nil,
		},
	}, nil
}

// querySources fans a query out to every observability source. Individual
// source failures degrade to error entries rather than failing the whole
// operation.
func (g *Gateway) querySources(ctx context.Context, query, timeframe string) map[string]any {
	observations := make(map[string]any, len(g.sources))
	for _, src := range g.sources {
		result, err := src.Query(ctx, query, timeframe)
		if err != nil {
			g.logger.Warn("observability query failed",
				"source", src.Name(),
				"error", err,
			)
			observations[src.Name()] = map[string]any{"error": err.Error()}
			continue
		}
		observations[src.Name()] = result.Data
	}
	return observations
}

// infer runs the inference collaborator when one is configured.
func (g *Gateway) infer(ctx context.Context, prompt string) (string, error) {
	if g.inference == nil {
		return "", fmt.Errorf("inference not configured")
	}
	return g.inference.Infer(ctx, prompt)
}

func (g *Gateway) auditAuthorization(ctx context.Context, principal authz.Principal, cls authz.Classification, authErr error) {
	if g.auditor == nil {
		return
	}
	r := audit.Record{
		Timestamp:   g.now().UTC(),
		EventType:   audit.EventTypeAuthorization,
		PrincipalID: principal.ID,
		Category:    string(cls.Category),
		Required:    capabilityStrings(cls.Required),
		Outcome:     audit.OutcomeAuthorized,
	}
	if authErr != nil {
		r.Outcome = audit.OutcomeDenied
		var ae *authz.AuthorizationError
		if errors.As(authErr, &ae) {
			r.Missing = capabilityStrings(ae.Missing)
		}
	}
	if err := g.auditor.Append(ctx, r); err != nil {
		g.logger.Warn("audit append failed", "error", err)
	}
}

func withCacheFlag(v any, cached bool) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{"result": v, "cached": cached}
	}
	out := make(map[string]any, len(m)+1)
	for k, val := range m {
		out[k] = val
	}
	out["cached"] = cached
	return out
}

func capabilityStrings(caps []authz.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

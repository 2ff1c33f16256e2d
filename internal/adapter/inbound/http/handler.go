package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/authz"
	"github.com/opsgate/opsgate/internal/service"
)

// Handler exposes the gateway's operations over HTTP. Every route goes
// through the gateway; the handler only translates between JSON and domain
// types.
type Handler struct {
	gateway *service.Gateway
	stats   *service.StatsService
	metrics *Metrics
}

// NewHandler creates the API handler. stats and metrics may be nil.
func NewHandler(gateway *service.Gateway, stats *service.StatsService, metrics *Metrics) *Handler {
	return &Handler{
		gateway: gateway,
		stats:   stats,
		metrics: metrics,
	}
}

// Register adds the API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/health-check", h.healthCheck)
	mux.HandleFunc("POST /api/investigate", h.investigate)
	mux.HandleFunc("GET /api/alerts/monitor", h.monitorAlerts)
	mux.HandleFunc("POST /api/trends/analyze", h.analyzeTrends)
	mux.HandleFunc("POST /api/remediation/suggest", h.suggestRemediation)
	mux.HandleFunc("POST /api/reports/generate", h.generateReport)
	mux.HandleFunc("POST /api/actions/execute", h.executeAction)
	mux.HandleFunc("GET /api/insights/{key}", h.insight)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/stats", h.getStats)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	result, err := h.gateway.HealthCheck(r.Context(), principal)
	h.respond(w, result, err)
}

func (h *Handler) investigate(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.gateway.InvestigateIncident(r.Context(), principal, req.Description)
	h.respond(w, result, err)
}

func (h *Handler) monitorAlerts(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	result, err := h.gateway.MonitorAlerts(r.Context(), principal)
	h.respond(w, result, err)
}

func (h *Handler) analyzeTrends(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var req struct {
		Metric    string `json:"metric"`
		Timeframe string `json:"timeframe"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.gateway.AnalyzeTrends(r.Context(), principal, req.Metric, req.Timeframe)
	h.respond(w, result, err)
}

func (h *Handler) suggestRemediation(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var req struct {
		Issue string `json:"issue"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.gateway.SuggestRemediation(r.Context(), principal, req.Issue)
	h.respond(w, result, err)
}

func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var req struct {
		IncidentID string `json:"incident_id"`
		Timeframe  string `json:"timeframe"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.gateway.GenerateIncidentReport(r.Context(), principal, req.IncidentID, req.Timeframe)
	h.respond(w, result, err)
}

func (h *Handler) executeAction(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var req struct {
		ActionType string         `json:"action_type"`
		Parameters map[string]any `json:"parameters"`
		Confidence float64        `json:"confidence"`
		IncidentID string         `json:"incident_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.gateway.ExecuteAction(r.Context(), principal, req.ActionType, req.Parameters, req.Confidence, req.IncidentID)
	if err != nil {
		h.recordActionMetrics(req.ActionType, err, false)
		h.writeDomainError(w, err)
		return
	}

	h.recordActionMetrics(req.ActionType, nil, rec.Result.Success)
	if h.stats != nil {
		h.stats.RecordAdmitted()
		if !rec.Result.Success {
			h.stats.RecordHandlerFailure()
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) insight(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	key := r.PathValue("key")
	v, found, err := h.gateway.Insight(r.Context(), principal, key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.stats != nil {
		if found {
			h.stats.RecordCacheHit()
		} else {
			h.stats.RecordCacheMiss()
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "insight not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal")
		return
	}
	result, err := h.gateway.Status(r.Context(), principal)
	h.respond(w, result, err)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "stats not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// respond writes the result or translates the domain error.
func (h *Handler) respond(w http.ResponseWriter, result any, err error) {
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps domain errors onto HTTP statuses: authorization
// failures are 403, policy rejections 409, anything else a 400.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var authErr *authz.AuthorizationError
	if errors.As(err, &authErr) {
		if h.stats != nil {
			h.stats.RecordAuthDenied()
		}
		if h.metrics != nil {
			h.metrics.AuthDenials.Inc()
		}
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":    "not authorized",
			"category": authErr.Category,
			"missing":  authErr.Missing,
		})
		return
	}

	var rejection *action.PolicyRejection
	if errors.As(err, &rejection) {
		if h.stats != nil {
			h.stats.RecordRejected(string(rejection.Reason))
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "action rejected",
			"kind":   rejection.Kind,
			"reason": rejection.Reason,
			"detail": rejection.Detail,
		})
		return
	}

	writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) recordActionMetrics(kind string, err error, success bool) {
	if h.metrics == nil {
		return
	}
	outcome := "executed"
	switch {
	case err != nil:
		outcome = "rejected"
	case !success:
		outcome = "failed"
	}
	h.metrics.ActionsTotal.WithLabelValues(kind, outcome).Inc()
}

func decodeBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

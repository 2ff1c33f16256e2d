package http

import (
	"net/http"
	"runtime"

	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/insight"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	cache   *insight.Cache
	history action.HistoryStore
	version string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(cache *insight.Cache, history action.HistoryStore, version string) *HealthChecker {
	return &HealthChecker{
		cache:   cache,
		history: history,
		version: version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(r *http.Request) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.cache != nil {
		// Len acquires the cache lock; a hang here means real trouble.
		_ = h.cache.Len()
		checks["insight_cache"] = "ok"
	} else {
		checks["insight_cache"] = "not configured"
	}

	if h.history != nil {
		if _, err := h.history.Recent(r.Context(), 1); err != nil {
			checks["action_history"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["action_history"] = "ok"
		}
	} else {
		checks["action_history"] = "not configured"
	}

	checks["goroutines"] = "ok"
	_ = runtime.NumGoroutine()

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns the /health HTTP handler.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r)
		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opsgate/opsgate/internal/adapter/outbound/memory"
	"github.com/opsgate/opsgate/internal/domain/authz"
	"github.com/opsgate/opsgate/internal/domain/insight"
	"github.com/opsgate/opsgate/internal/domain/policy"
	"github.com/opsgate/opsgate/internal/port/outbound"
	"github.com/opsgate/opsgate/internal/service"
)

const (
	adminKey  = "sk-test-admin"
	viewerKey = "sk-test-viewer"
)

// staticSource is an observability backend that always returns the same data.
type staticSource struct {
	name string
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Query(_ context.Context, query, _ string) (outbound.ObservabilityResult, error) {
	return outbound.ObservabilityResult{
		Source:      s.name,
		Data:        map[string]any{"query": query, "status": "ok"},
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// newTestServer wires a full stack behind httptest: auth store seeded with an
// admin and a read-only viewer, in-memory collaborators, and the standard
// middleware chain the transport builds.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store := memory.NewAuthStore()
	store.AddIdentity(&authz.Identity{
		ID:   "admin",
		Name: "Admin",
		Capabilities: []authz.Capability{
			authz.CapabilityRead, authz.CapabilityIncident, authz.CapabilityAlert,
			authz.CapabilityAction, authz.CapabilityMetrics, authz.CapabilityAdmin,
		},
	})
	store.AddIdentity(&authz.Identity{
		ID:           "viewer",
		Name:         "Viewer",
		Capabilities: []authz.Capability{authz.CapabilityRead},
	})
	ctx := context.Background()
	if err := store.SaveAPIKey(ctx, &authz.APIKey{Key: authz.HashKey(adminKey), IdentityID: "admin", Name: "admin key"}); err != nil {
		t.Fatalf("SaveAPIKey() error = %v", err)
	}
	if err := store.SaveAPIKey(ctx, &authz.APIKey{Key: authz.HashKey(viewerKey), IdentityID: "viewer", Name: "viewer key"}); err != nil {
		t.Fatalf("SaveAPIKey() error = %v", err)
	}
	keys := authz.NewAPIKeyService(store)

	handlers := policy.NewHandlers(
		memory.NewTicketer("https://tickets.example.com"),
		memory.NewChannelOpener("https://chat.example.com/hooks"),
		memory.NewOrchestrator(),
	)
	engine := policy.NewEngine(policy.DefaultConfig(), memory.NewHistoryStore(), handlers, logger)

	cache := insight.NewCache()
	gateway := service.NewGateway(
		authz.NewResolver(authz.DefaultRules()),
		engine,
		cache,
		logger,
		service.WithSources(&staticSource{name: "prometheus"}),
	)

	mux := http.NewServeMux()
	NewHandler(gateway, nil, nil).Register(mux)
	var api http.Handler = mux
	api = AuthMiddleware(keys)(api)
	api = RequestIDMiddleware(logger)(api)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, apiKey string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestMissingAPIKeyRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "missing API key" {
		t.Errorf("error = %q, want missing API key", body["error"])
	}
}

func TestInvalidAPIKeyRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/status", "sk-wrong", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthCheckCachesInsight(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/health-check", adminKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health-check status = %d, want 200: %v", resp.StatusCode, body)
	}
	if body["cached"] != false {
		t.Errorf("first call cached = %v, want false", body["cached"])
	}

	resp, body = doJSON(t, srv, http.MethodGet, "/api/insights/health_check", adminKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("insight status = %d, want 200: %v", resp.StatusCode, body)
	}
	if body["key"] != "health_check" {
		t.Errorf("insight key = %v, want health_check", body["key"])
	}
}

func TestInsightNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/insights/nope", adminKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExecuteActionSucceeds(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/actions/execute", adminKey, map[string]any{
		"action_type": "restart_service",
		"parameters":  map[string]any{"service": "checkout"},
		"confidence":  0.95,
		"incident_id": "INC-42",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", resp.StatusCode, body)
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("result missing from record: %v", body)
	}
	if result["success"] != true {
		t.Errorf("result.success = %v, want true", result["success"])
	}
	if body["id"] == "" {
		t.Error("record id is empty")
	}
}

func TestExecuteActionLowConfidenceConflict(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/actions/execute", adminKey, map[string]any{
		"action_type": "restart_service",
		"parameters":  map[string]any{"service": "checkout"},
		"confidence":  0.5,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %v", resp.StatusCode, body)
	}
	if body["reason"] != "confidence_below_threshold" {
		t.Errorf("reason = %v, want confidence_below_threshold", body["reason"])
	}
}

func TestExecuteActionUnknownKind(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/actions/execute", adminKey, map[string]any{
		"action_type": "launch_missiles",
		"confidence":  0.99,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestViewerCannotExecuteActions(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/api/actions/execute", viewerKey, map[string]any{
		"action_type": "restart_service",
		"parameters":  map[string]any{"service": "checkout"},
		"confidence":  0.95,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %v", resp.StatusCode, body)
	}
	missing, ok := body["missing"].([]any)
	if !ok || len(missing) != 1 || missing[0] != "action" {
		t.Errorf("missing = %v, want [action]", body["missing"])
	}
}

func TestViewerCanReadStatus(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodGet, "/api/status", viewerKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", resp.StatusCode, body)
	}
	if _, ok := body["policy_engine"]; !ok {
		t.Errorf("status response missing policy_engine section: %v", body)
	}
}

func TestInvestigateRequiresIncidentCapability(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/investigate", viewerKey, map[string]any{
		"description": "database latency spike",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/api/investigate", adminKey, map[string]any{
		"description": "latency",
		"bogus":       true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

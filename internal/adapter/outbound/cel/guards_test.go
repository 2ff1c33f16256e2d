package cel

import (
	"context"
	"testing"

	"github.com/opsgate/opsgate/internal/domain/action"
)

func guardRequest(t *testing.T, kind action.Kind, params map[string]any, confidence float64) action.Request {
	t.Helper()
	req, err := action.NewRequest(kind, params, confidence, "INC-1")
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestGuardSetAllow(t *testing.T) {
	rules := []GuardRule{
		{Name: "no-config-changes", Expression: `action.kind != "update_config"`},
		{Name: "rollback-needs-high-confidence", Expression: `action.kind != "trigger_auto_rollback" || action.confidence >= 0.95`},
	}
	gs, err := NewGuardSet(rules, 0)
	if err != nil {
		t.Fatalf("NewGuardSet() error = %v", err)
	}

	tests := []struct {
		name       string
		req        action.Request
		wantAllow  bool
		wantReason string
	}{
		{
			name:      "plain summary allowed",
			req:       guardRequest(t, action.KindSummarizeIncident, nil, 0.9),
			wantAllow: true,
		},
		{
			name:       "config change denied by first rule",
			req:        guardRequest(t, action.KindUpdateConfig, map[string]any{"service": "api", "changes": map[string]any{"timeout": "30s"}}, 0.99),
			wantAllow:  false,
			wantReason: "no-config-changes",
		},
		{
			name:       "marginal rollback denied by second rule",
			req:        guardRequest(t, action.KindTriggerAutoRollback, map[string]any{"deployment_id": "d-1"}, 0.85),
			wantAllow:  false,
			wantReason: "rollback-needs-high-confidence",
		},
		{
			name:      "confident rollback allowed",
			req:       guardRequest(t, action.KindTriggerAutoRollback, map[string]any{"deployment_id": "d-1"}, 0.97),
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason, err := gs.Allow(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Allow() error = %v", err)
			}
			if allowed != tt.wantAllow {
				t.Errorf("allowed = %v, want %v", allowed, tt.wantAllow)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestGuardSetCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		rules []GuardRule
	}{
		{"empty name", []GuardRule{{Name: "", Expression: "true"}}},
		{"syntax error", []GuardRule{{Name: "bad", Expression: "action.kind =="}}},
		{"unknown variable", []GuardRule{{Name: "bad", Expression: "tool_name == 'x'"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGuardSet(tt.rules, 0); err == nil {
				t.Error("NewGuardSet() error = nil, want compile failure")
			}
		})
	}
}

func TestGuardSetEmptyAllowsAll(t *testing.T) {
	gs, err := NewGuardSet(nil, 0)
	if err != nil {
		t.Fatalf("NewGuardSet() error = %v", err)
	}
	allowed, _, err := gs.Allow(context.Background(), guardRequest(t, action.KindRestartService, map[string]any{"service": "api"}, 0.9))
	if err != nil || !allowed {
		t.Errorf("Allow() = %v, %v, want true, nil", allowed, err)
	}
}

func TestGuardSetVerdictCache(t *testing.T) {
	gs, err := NewGuardSet([]GuardRule{
		{Name: "deny-update", Expression: `action.kind != "update_config"`},
	}, 8)
	if err != nil {
		t.Fatalf("NewGuardSet() error = %v", err)
	}

	req := guardRequest(t, action.KindSummarizeIncident, map[string]any{"incident_id": "INC-1"}, 0.9)
	for i := 0; i < 3; i++ {
		allowed, _, err := gs.Allow(context.Background(), req)
		if err != nil || !allowed {
			t.Fatalf("pass %d: Allow() = %v, %v", i, allowed, err)
		}
	}

	// Distinct requests must not collide on the memoized verdict.
	other := guardRequest(t, action.KindUpdateConfig, map[string]any{"service": "api", "changes": map[string]any{"x": "y"}}, 0.9)
	allowed, reason, err := gs.Allow(context.Background(), other)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed || reason != "deny-update" {
		t.Errorf("Allow() = %v, %q, want denial by deny-update", allowed, reason)
	}
}

func TestFingerprintParamOrderIndependent(t *testing.T) {
	a := guardRequest(t, action.KindSummarizeIncident, map[string]any{"severity": "high", "incident_id": "INC-1"}, 0.9)
	b := guardRequest(t, action.KindSummarizeIncident, map[string]any{"incident_id": "INC-1", "severity": "high"}, 0.9)
	if fingerprint(a) != fingerprint(b) {
		t.Error("fingerprints differ for identical requests")
	}

	c := guardRequest(t, action.KindSummarizeIncident, map[string]any{"incident_id": "INC-2", "severity": "high"}, 0.9)
	if fingerprint(a) == fingerprint(c) {
		t.Error("fingerprints collide for different requests")
	}
}

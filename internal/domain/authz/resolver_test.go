package authz

import (
	"errors"
	"testing"
)

func TestClassify_Categories(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name  string
		input string
		want  Category
	}{
		{"health check", "run a system health check", CategoryHealth},
		{"status query", "what is the current status", CategoryHealth},
		{"incident", "investigate the checkout outage", CategoryIncident},
		{"alert", "show active alerts", CategoryAlert},
		{"remediation", "remediate the failing service", CategoryAction},
		{"rollback", "rollback the last deployment", CategoryAction},
		{"metrics", "cpu trend over the last day", CategoryMetrics},
		{"latency", "p95 latency looks bad", CategoryMetrics},
		{"mixed case", "INVESTIGATE THE INCIDENT", CategoryIncident},
		{"structured op name", "trigger_auto_rollback", CategoryAction},
		{"no match", "hello there", CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(tt.input)
			if got.Category != tt.want {
				t.Errorf("Classify(%q).Category = %v, want %v", tt.input, got.Category, tt.want)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	r := NewResolver(nil)

	// "incident" and "metrics" both appear; the incident rule is evaluated
	// first, so rule order decides, not specificity.
	got := r.Classify("show me incident metrics")
	if got.Category != CategoryIncident {
		t.Errorf("Classify returned %v, want %v (first rule in order wins)",
			got.Category, CategoryIncident)
	}
}

func TestClassify_DefaultRequiresRead(t *testing.T) {
	r := NewResolver(nil)

	got := r.Classify("completely unrelated request")
	if len(got.Required) != 1 || got.Required[0] != CapabilityRead {
		t.Errorf("default Required = %v, want [read]", got.Required)
	}
}

func TestAuthorize_SupersetSucceeds(t *testing.T) {
	r := NewResolver(nil)
	p := Principal{
		ID:           "sre-1",
		Capabilities: []Capability{CapabilityRead, CapabilityIncident, CapabilityMetrics},
	}

	cls := Classification{
		Category: CategoryIncident,
		Required: []Capability{CapabilityRead, CapabilityIncident},
	}
	if err := r.Authorize(p, cls); err != nil {
		t.Errorf("Authorize with superset capabilities failed: %v", err)
	}
}

func TestAuthorize_PartialMatchFails(t *testing.T) {
	r := NewResolver(nil)
	p := Principal{ID: "viewer", Capabilities: []Capability{CapabilityRead}}

	cls := Classification{
		Category: CategoryIncident,
		Required: []Capability{CapabilityRead, CapabilityIncident},
	}
	err := r.Authorize(p, cls)
	if err == nil {
		t.Fatal("Authorize succeeded with partial capability match")
	}

	var authzErr *AuthorizationError
	if !errors.As(err, &authzErr) {
		t.Fatalf("error type = %T, want *AuthorizationError", err)
	}
	if !errors.Is(err, ErrNotAuthorized) {
		t.Error("AuthorizationError does not unwrap to ErrNotAuthorized")
	}
	if len(authzErr.Missing) != 1 || authzErr.Missing[0] != CapabilityIncident {
		t.Errorf("Missing = %v, want [incident]", authzErr.Missing)
	}
}

func TestAuthorize_Monotonic(t *testing.T) {
	r := NewResolver(nil)
	cls := r.Classify("analyze error rate trends")

	p := Principal{ID: "p", Capabilities: []Capability{CapabilityRead, CapabilityMetrics}}
	if err := r.Authorize(p, cls); err != nil {
		t.Fatalf("baseline authorization failed: %v", err)
	}

	// Adding capabilities never turns success into failure.
	p.Capabilities = append(p.Capabilities,
		CapabilityIncident, CapabilityAlert, CapabilityAction, CapabilityAdmin)
	if err := r.Authorize(p, cls); err != nil {
		t.Errorf("authorization failed after granting more capabilities: %v", err)
	}
}

func TestAuthorize_NoCapabilities(t *testing.T) {
	r := NewResolver(nil)
	p := Principal{ID: "nobody"}

	err := r.Authorize(p, Classification{Required: []Capability{CapabilityRead}})
	if err == nil {
		t.Error("Authorize succeeded for a principal with no capabilities")
	}
}

func TestClassify_PureFunction(t *testing.T) {
	r := NewResolver(nil)

	first := r.Classify("investigate incident")
	first.Required[0] = CapabilityAdmin
	second := r.Classify("investigate incident")
	if second.Required[0] == CapabilityAdmin {
		t.Error("Classify result shares state between calls")
	}
}

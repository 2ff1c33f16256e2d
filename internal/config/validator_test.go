package config

import (
	"strings"
	"testing"
)

// validConfig returns a minimal configuration that passes validation.
func validConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	cfg.Auth = AuthConfig{
		Identities: []IdentityConfig{
			{ID: "ops", Name: "Ops Team", Capabilities: []string{"read", "action"}},
		},
		APIKeys: []APIKeyConfig{
			{KeyHash: "sha256:abc123", IdentityID: "ops"},
		},
	}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_ZeroConfigWithDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil for defaulted config", err)
	}
}

func TestValidate_AuditOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "stdout", output: "stdout", wantErr: false},
		{name: "absolute file", output: "file:///var/log/opsgate/audit.jsonl", wantErr: false},
		{name: "relative file", output: "file://relative/audit.jsonl", wantErr: true},
		{name: "empty file path", output: "file://", wantErr: true},
		{name: "bogus value", output: "syslog", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Audit.Output = tt.output
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnknownCapability(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Identities[0].Capabilities = []string{"read", "superuser"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error for unknown capability")
	}
	if !strings.Contains(err.Error(), "capability") {
		t.Errorf("error = %v, want mention of capability", err)
	}
}

func TestValidate_UnknownIdentityReference(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.APIKeys[0].IdentityID = "ghost"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error for unknown identity_id")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error = %v, want mention of ghost", err)
	}
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := validConfig()
	cfg.History.Backend = "sqlite"
	cfg.History.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for sqlite without path")
	}

	cfg.History.Path = "/var/lib/opsgate/history.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil with path set", err)
	}
}

func TestValidate_BadWindow(t *testing.T) {
	tests := []struct {
		name    string
		window  string
		wantErr bool
	}{
		{name: "hours", window: "2h", wantErr: false},
		{name: "minutes", window: "45m", wantErr: false},
		{name: "not a duration", window: "soon", wantErr: true},
		{name: "negative", window: "-1h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Policy.Window = tt.window
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_BadConfidenceThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Policy.ConfidenceThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for threshold above 1")
	}
}

func TestValidate_SourceRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Observability = []SourceConfig{{Name: "prometheus"}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for source without endpoint")
	}
}

func TestValidate_BadSourceEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Observability = []SourceConfig{{Name: "prometheus", Endpoint: "not a url", Tool: "query"}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid endpoint URL")
	}
}

func TestValidate_RuleRequiresKeywords(t *testing.T) {
	cfg := validConfig()
	cfg.Rules = []RuleConfig{
		{Category: "health", Keywords: nil, Capabilities: []string{"read"}},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for rule without keywords")
	}
}

func TestValidate_BadServerAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Addr = "not-an-addr"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid addr")
	}
}

// Package config provides the configuration schema and loading for the
// opsgate daemon. Configuration comes from a YAML file plus OPSGATE_*
// environment overrides.
package config

import (
	"github.com/spf13/viper"
)

// Config is the top-level configuration for the opsgate daemon.
type Config struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy configures the action admission policy.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Cache configures the insight cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Guards configures optional CEL guard rules evaluated on top of the
	// canonical admission checks.
	Guards GuardsConfig `yaml:"guards" mapstructure:"guards"`

	// Audit configures where audit records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// History configures the action history store.
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Observability lists the backends queried for health, incident, and
	// trend operations.
	Observability []SourceConfig `yaml:"observability" mapstructure:"observability" validate:"omitempty,dive"`

	// Inference configures the LLM client used for summaries and
	// remediation suggestions. Optional: when the API key is empty those
	// operations return raw observations without model output.
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`

	// Auth configures file-based identities and API keys.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Rules overrides the keyword classification rules. When empty the
	// built-in default rules apply. Rules are evaluated in order; first
	// match wins.
	Rules []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`

	// DevMode enables development features (verbose logging, seeded identity).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// PolicyConfig configures the action admission policy.
type PolicyConfig struct {
	// AutoRemediationEnabled is the global kill switch. When false, every
	// proposed action is rejected.
	AutoRemediationEnabled bool `yaml:"auto_remediation_enabled" mapstructure:"auto_remediation_enabled"`

	// ConfidenceThreshold is the minimum confidence for admission (0..1).
	// Defaults to 0.8.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold" validate:"omitempty,gt=0,lte=1"`

	// MaxActionsPerWindow bounds admitted actions inside the trailing window.
	// Defaults to 3.
	MaxActionsPerWindow int `yaml:"max_actions_per_window" mapstructure:"max_actions_per_window" validate:"omitempty,min=1"`

	// Window is the trailing rate-limit window (e.g., "1h", "30m").
	// Defaults to "1h".
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty,duration"`
}

// CacheConfig configures the insight cache.
type CacheConfig struct {
	// MaxEntries bounds the number of resident entries; the oldest entry
	// is evicted when the cap is hit. 0 means unbounded.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries" validate:"omitempty,min=1"`

	// SweepInterval is how often expired entries are reaped (e.g., "5m").
	// Defaults to "5m". Expired entries are invisible to reads either way.
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"omitempty,duration"`
}

// GuardsConfig configures CEL guard rules.
type GuardsConfig struct {
	// RulesFile is the path to a YAML file of guard rules. Optional.
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`

	// VerdictCacheSize bounds the per-guard verdict cache.
	// Defaults to 256.
	VerdictCacheSize int `yaml:"verdict_cache_size" mapstructure:"verdict_cache_size" validate:"omitempty,min=1"`
}

// AuditConfig configures audit record output.
type AuditConfig struct {
	// Output specifies where audit records are written.
	// Valid values: "stdout" or "file:///absolute/path/to/audit.jsonl"
	// Defaults to "stdout" if empty.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// MaxSizeMB is the maximum size per audit file in megabytes before
	// rotation. Defaults to 100. Only applies to file output.
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"omitempty,min=1"`

	// MaxBackups is the number of rotated files to keep. Defaults to 10.
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups" validate:"omitempty,min=1"`

	// MaxAgeDays is the number of days to keep rotated files. Defaults to 30.
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days" validate:"omitempty,min=1"`

	// Compress controls gzip compression of rotated files. Defaults to true.
	Compress bool `yaml:"compress" mapstructure:"compress"`
}

// HistoryConfig configures the action history store.
type HistoryConfig struct {
	// Backend selects the store implementation.
	// Valid values: "memory" or "sqlite". Defaults to "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite"`

	// Path is the SQLite database file. Required when backend is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`

	// Capacity bounds the in-memory ring buffer. Defaults to 1000.
	// Only applies to the memory backend.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"omitempty,min=1"`
}

// SourceConfig configures one observability backend reachable over MCP.
type SourceConfig struct {
	// Name identifies the backend (e.g., "prometheus", "elasticsearch").
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Endpoint is the backend's MCP endpoint URL.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`

	// Tool is the MCP tool invoked for queries. Defaults to "query".
	Tool string `yaml:"tool" mapstructure:"tool"`
}

// InferenceConfig configures the LLM inference client.
type InferenceConfig struct {
	// APIKey authenticates against the inference API. Empty disables inference.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint (for proxies or compatible servers).
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Model is the model identifier. Defaults to "gpt-4o-mini".
	Model string `yaml:"model" mapstructure:"model"`

	// Temperature is the sampling temperature.
	Temperature float32 `yaml:"temperature" mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// AuthConfig configures file-based authentication.
type AuthConfig struct {
	// Identities defines the known identities (users/services).
	Identities []IdentityConfig `yaml:"identities" mapstructure:"identities" validate:"omitempty,dive"`

	// APIKeys defines the API keys that map to identities.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// IdentityConfig defines a file-based identity.
type IdentityConfig struct {
	// ID is the unique identifier for this identity.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name for this identity.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Capabilities are the capabilities granted to this identity.
	Capabilities []string `yaml:"capabilities" mapstructure:"capabilities" validate:"required,min=1,dive,capability"`
}

// APIKeyConfig defines an API key that authenticates as an identity.
type APIKeyConfig struct {
	// KeyHash is the hash of the API key: "sha256:<hex>", bare SHA-256 hex,
	// or an Argon2id PHC string produced by `opsgate hash-key`.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required"`

	// IdentityID references the identity this key authenticates as.
	// Must match an ID in Auth.Identities.
	IdentityID string `yaml:"identity_id" mapstructure:"identity_id" validate:"required"`

	// Name is a human-readable label for this key.
	Name string `yaml:"name" mapstructure:"name"`
}

// RuleConfig defines one keyword classification rule.
type RuleConfig struct {
	// Category is the operation category this rule classifies into.
	Category string `yaml:"category" mapstructure:"category" validate:"required"`

	// Keywords match against the operation query (case-insensitive substring).
	Keywords []string `yaml:"keywords" mapstructure:"keywords" validate:"required,min=1"`

	// Capabilities are required of the principal when this rule matches.
	Capabilities []string `yaml:"capabilities" mapstructure:"capabilities" validate:"required,min=1,dive,capability"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if len(c.Auth.Identities) == 0 {
		c.Auth.Identities = []IdentityConfig{
			{
				ID:           "dev-user",
				Name:         "Development User",
				Capabilities: []string{"read", "incident", "alert", "action", "metrics", "admin"},
			},
		}
	}

	// SHA-256 of "dev-api-key"
	if len(c.Auth.APIKeys) == 0 {
		c.Auth.APIKeys = []APIKeyConfig{
			{
				KeyHash:    "sha256:6e1e4e1b8f8b36d08901cdb51b97841dfe20f5efd2fd2fd00768971408c46274",
				IdentityID: "dev-user",
			},
		}
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only unless explicitly configured otherwise.
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	// Policy defaults mirror policy.DefaultConfig. auto_remediation_enabled
	// defaults to true only when the key is absent; an explicit false is a
	// deliberate kill switch and must survive.
	if !viper.IsSet("policy.auto_remediation_enabled") {
		c.Policy.AutoRemediationEnabled = true
	}
	if c.Policy.ConfidenceThreshold == 0 {
		c.Policy.ConfidenceThreshold = 0.8
	}
	if c.Policy.MaxActionsPerWindow == 0 {
		c.Policy.MaxActionsPerWindow = 3
	}
	if c.Policy.Window == "" {
		c.Policy.Window = "1h"
	}

	if c.Cache.SweepInterval == "" {
		c.Cache.SweepInterval = "5m"
	}

	if c.Guards.VerdictCacheSize == 0 {
		c.Guards.VerdictCacheSize = 256
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.MaxSizeMB == 0 {
		c.Audit.MaxSizeMB = 100
	}
	if c.Audit.MaxBackups == 0 {
		c.Audit.MaxBackups = 10
	}
	if c.Audit.MaxAgeDays == 0 {
		c.Audit.MaxAgeDays = 30
	}
	if !viper.IsSet("audit.compress") {
		c.Audit.Compress = true
	}

	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = 1000
	}

	for i := range c.Observability {
		if c.Observability[i].Tool == "" {
			c.Observability[i].Tool = "query"
		}
	}

	if c.Inference.Model == "" {
		c.Inference.Model = "gpt-4o-mini"
	}
}

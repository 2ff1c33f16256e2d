package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for opsgate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("opsgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: OPSGATE_SERVER_ADDR
	viper.SetEnvPrefix("OPSGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an opsgate config file with
// an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".opsgate"),
		"/etc/opsgate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "opsgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the scalar config keys for environment variable
// support. Example: OPSGATE_POLICY_CONFIDENCE_THRESHOLD overrides
// policy.confidence_threshold. Array-valued sections (auth, observability,
// rules) must come from the config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.tls_cert_file")
	_ = viper.BindEnv("server.tls_key_file")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("policy.auto_remediation_enabled")
	_ = viper.BindEnv("policy.confidence_threshold")
	_ = viper.BindEnv("policy.max_actions_per_window")
	_ = viper.BindEnv("policy.window")

	_ = viper.BindEnv("cache.max_entries")
	_ = viper.BindEnv("cache.sweep_interval")

	_ = viper.BindEnv("guards.rules_file")
	_ = viper.BindEnv("guards.verdict_cache_size")

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.max_size_mb")
	_ = viper.BindEnv("audit.max_backups")
	_ = viper.BindEnv("audit.max_age_days")
	_ = viper.BindEnv("audit.compress")

	_ = viper.BindEnv("history.backend")
	_ = viper.BindEnv("history.path")
	_ = viper.BindEnv("history.capacity")

	_ = viper.BindEnv("inference.api_key")
	_ = viper.BindEnv("inference.base_url")
	_ = viper.BindEnv("inference.model")
	_ = viper.BindEnv("inference.temperature")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates. Callers that apply CLI flag overrides first
// (e.g. --dev) should use LoadConfigRaw instead, then call SetDevDefaults
// and Validate themselves.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

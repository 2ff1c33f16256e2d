package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	httpadapter "github.com/opsgate/opsgate/internal/adapter/inbound/http"
	auditfile "github.com/opsgate/opsgate/internal/adapter/outbound/audit"
	"github.com/opsgate/opsgate/internal/adapter/outbound/cel"
	"github.com/opsgate/opsgate/internal/adapter/outbound/llm"
	"github.com/opsgate/opsgate/internal/adapter/outbound/memory"
	"github.com/opsgate/opsgate/internal/adapter/outbound/obsmcp"
	"github.com/opsgate/opsgate/internal/adapter/outbound/sqlite"
	"github.com/opsgate/opsgate/internal/config"
	"github.com/opsgate/opsgate/internal/domain/action"
	"github.com/opsgate/opsgate/internal/domain/audit"
	"github.com/opsgate/opsgate/internal/domain/authz"
	"github.com/opsgate/opsgate/internal/domain/insight"
	"github.com/opsgate/opsgate/internal/domain/policy"
	"github.com/opsgate/opsgate/internal/port/outbound"
	"github.com/opsgate/opsgate/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the opsgate gateway server.

The server exposes the agent operations over HTTP (see /api routes),
Prometheus metrics on /metrics, and a health check on /health.

Examples:
  # Start with config file settings
  opsgate start

  # Start with a specific config file
  opsgate --config /path/to/config.yaml start

  # Start in development mode (seeded dev identity, debug logging)
  opsgate start --dev`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, seeded dev identity)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration without validation so the --dev flag can apply first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled; do not use in production")
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("opsgate stopped")
	return nil
}

// run wires all components together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	authStore := memory.NewAuthStore()
	if err := seedAuthFromConfig(cfg, authStore); err != nil {
		return fmt.Errorf("failed to seed auth: %w", err)
	}
	logger.Debug("seeded auth from config",
		"identities", len(cfg.Auth.Identities),
		"api_keys", len(cfg.Auth.APIKeys),
	)
	keys := authz.NewAPIKeyService(authStore)

	resolver := authz.NewResolver(rulesFromConfig(cfg))

	history, err := newHistoryStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() { _ = history.Close() }()

	auditStore := newAuditStore(cfg, logger)
	defer func() { _ = auditStore.Close() }()

	handlers := policy.NewHandlers(
		memory.NewTicketer("https://tickets.opsgate.internal"),
		memory.NewChannelOpener("https://chat.opsgate.internal/hooks"),
		memory.NewOrchestrator(),
	)

	window, err := time.ParseDuration(cfg.Policy.Window)
	if err != nil {
		return fmt.Errorf("invalid policy window: %w", err)
	}
	engineOpts := []policy.EngineOption{policy.WithAuditor(auditStore)}
	if cfg.Guards.RulesFile != "" {
		guards, err := loadGuardSet(cfg)
		if err != nil {
			return fmt.Errorf("failed to load guard rules: %w", err)
		}
		engineOpts = append(engineOpts, policy.WithGuard(guards))
		logger.Info("guard rules loaded", "file", cfg.Guards.RulesFile)
	}
	engine := policy.NewEngine(policy.Config{
		AutoRemediationEnabled: cfg.Policy.AutoRemediationEnabled,
		ConfidenceThreshold:    cfg.Policy.ConfidenceThreshold,
		MaxActionsPerWindow:    cfg.Policy.MaxActionsPerWindow,
		Window:                 window,
	}, history, handlers, logger, engineOpts...)

	cacheOpts := []insight.Option{}
	if cfg.Cache.MaxEntries > 0 {
		cacheOpts = append(cacheOpts, insight.WithMaxEntries(cfg.Cache.MaxEntries))
	}
	if sweep, err := time.ParseDuration(cfg.Cache.SweepInterval); err == nil {
		cacheOpts = append(cacheOpts, insight.WithSweepInterval(sweep))
	}
	cache := insight.NewCache(cacheOpts...)
	cache.StartSweep(ctx)
	defer cache.Stop()

	gatewayOpts := []service.GatewayOption{service.WithAuditor(auditStore)}
	if len(cfg.Observability) > 0 {
		sources := make([]outbound.ObservabilitySource, 0, len(cfg.Observability))
		for _, src := range cfg.Observability {
			sources = append(sources, obsmcp.New(src.Name, src.Endpoint, src.Tool))
			logger.Info("observability source configured", "name", src.Name, "endpoint", src.Endpoint)
		}
		gatewayOpts = append(gatewayOpts, service.WithSources(sources...))
	}
	if cfg.Inference.APIKey != "" {
		inference, err := llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.Inference.APIKey,
			BaseURL:     cfg.Inference.BaseURL,
			Model:       cfg.Inference.Model,
			Temperature: cfg.Inference.Temperature,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create inference client: %w", err)
		}
		gatewayOpts = append(gatewayOpts, service.WithInference(inference))
	}

	gateway := service.NewGateway(resolver, engine, cache, logger, gatewayOpts...)

	registry := prometheus.NewRegistry()
	stats := service.NewStatsService(cache, registry)

	transport := httpadapter.NewTransport(gateway, keys,
		httpadapter.WithAddr(cfg.Server.Addr),
		httpadapter.WithLogger(logger),
		httpadapter.WithRegistry(registry),
		httpadapter.WithStats(stats),
		httpadapter.WithHealthChecker(httpadapter.NewHealthChecker(cache, history, Version)),
		httpadapter.WithTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile),
	)

	return transport.Start(ctx)
}

// seedAuthFromConfig populates the auth store with configured identities and
// API keys. SHA-256 hashes are stored bare so key resolution takes the fast
// lookup path; Argon2id PHC strings are stored as-is.
func seedAuthFromConfig(cfg *config.Config, store *memory.AuthStore) error {
	for _, identity := range cfg.Auth.Identities {
		caps := make([]authz.Capability, 0, len(identity.Capabilities))
		for _, c := range identity.Capabilities {
			caps = append(caps, authz.Capability(c))
		}
		store.AddIdentity(&authz.Identity{
			ID:           identity.ID,
			Name:         identity.Name,
			Capabilities: caps,
		})
	}

	for i, key := range cfg.Auth.APIKeys {
		stored := strings.TrimPrefix(key.KeyHash, "sha256:")
		if err := store.SaveAPIKey(context.Background(), &authz.APIKey{
			Key:        stored,
			IdentityID: key.IdentityID,
			Name:       key.Name,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("api_keys[%d]: %w", i, err)
		}
	}

	return nil
}

// rulesFromConfig converts configured classification rules. Empty config
// means NewResolver falls back to the built-in rules.
func rulesFromConfig(cfg *config.Config) []authz.Rule {
	rules := make([]authz.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		required := make([]authz.Capability, 0, len(r.Capabilities))
		for _, c := range r.Capabilities {
			required = append(required, authz.Capability(c))
		}
		rules = append(rules, authz.Rule{
			Category: authz.Category(r.Category),
			Keywords: r.Keywords,
			Required: required,
		})
	}
	return rules
}

// newHistoryStore opens the configured action history backend.
func newHistoryStore(cfg *config.Config, logger *slog.Logger) (action.HistoryStore, error) {
	switch cfg.History.Backend {
	case "sqlite":
		logger.Info("using sqlite history store", "path", cfg.History.Path)
		return sqlite.Open(cfg.History.Path)
	default:
		logger.Info("using in-memory history store", "capacity", cfg.History.Capacity)
		return memory.NewHistoryStore(cfg.History.Capacity), nil
	}
}

// newAuditStore creates the audit sink from config. "stdout" maps to an
// unrotated stdout writer; "file://<path>" enables rotation.
func newAuditStore(cfg *config.Config, logger *slog.Logger) audit.Store {
	path := ""
	if strings.HasPrefix(cfg.Audit.Output, "file://") {
		path = strings.TrimPrefix(cfg.Audit.Output, "file://")
	}
	return auditfile.NewFileStore(auditfile.Config{
		Path:       path,
		MaxSizeMB:  cfg.Audit.MaxSizeMB,
		MaxBackups: cfg.Audit.MaxBackups,
		MaxAgeDays: cfg.Audit.MaxAgeDays,
		Compress:   cfg.Audit.Compress,
	}, logger)
}

// loadGuardSet reads and compiles the CEL guard rules file.
func loadGuardSet(cfg *config.Config) (*cel.GuardSet, error) {
	data, err := os.ReadFile(cfg.Guards.RulesFile)
	if err != nil {
		return nil, err
	}
	var rules []cel.GuardRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfg.Guards.RulesFile, err)
	}
	return cel.NewGuardSet(rules, cfg.Guards.VerdictCacheSize)
}

// parseLogLevel maps the configured level string onto a slog level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

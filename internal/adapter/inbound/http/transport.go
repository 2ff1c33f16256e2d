// Package http provides the HTTP transport adapter for the gateway.
package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/opsgate/opsgate/internal/domain/authz"
	"github.com/opsgate/opsgate/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transport is the inbound adapter that connects the gateway to HTTP
// clients. All API routes require an API key; /health and /metrics do not.
type Transport struct {
	gateway       *service.Gateway
	keys          *authz.APIKeyService
	stats         *service.StatsService
	server        *http.Server
	addr          string
	certFile      string
	keyFile       string
	logger        *slog.Logger
	registry      *prometheus.Registry
	metrics       *Metrics
	healthChecker *HealthChecker
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithTLS enables TLS with the provided certificate and key files.
// If not set, the server runs without TLS (plain HTTP).
func WithTLS(certFile, keyFile string) Option {
	return func(t *Transport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithStats sets the stats service exposed on /api/stats.
func WithStats(stats *service.StatsService) Option {
	return func(t *Transport) {
		t.stats = stats
	}
}

// WithRegistry sets the Prometheus registry. When unset, Start creates its
// own. Sharing a registry lets other components gather the same metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(t *Transport) {
		t.registry = reg
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = hc
	}
}

// NewTransport creates an HTTP transport adapter wrapping the given gateway.
func NewTransport(gateway *service.Gateway, keys *authz.APIKeyService, opts ...Option) *Transport {
	t := &Transport{
		gateway: gateway,
		keys:    keys,
		addr:    "127.0.0.1:8080",
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	reg := t.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg)

	// Middleware order (outermost first):
	// 1. Metrics - record duration and status for the full request
	// 2. RequestID - extract/generate request ID and enrich logger
	// 3. Auth - resolve API key to a principal
	apiMux := http.NewServeMux()
	NewHandler(t.gateway, t.stats, t.metrics).Register(apiMux)
	var api http.Handler = apiMux
	api = AuthMiddleware(t.keys)(api)
	api = RequestIDMiddleware(t.logger)(api)
	api = MetricsMiddleware(t.metrics)(api)

	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
	mux.Handle("/api/", api)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"postulamatch/internal/ai"
	"postulamatch/internal/coach"
	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/i18n"
	"postulamatch/internal/observability"
	"postulamatch/internal/server"
	"postulamatch/internal/session"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session API",
	Long: `Start the HTTP server exposing coaching sessions under /api/v1.

A session walks through upload, analysis and results. Secondary reports are
generated in the background the first time their tab is opened, quizzes are
graded on the server and the tutor chat keeps its history per session.

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled or server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

// applyServeFlags copies the flags set on the command line over the config
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
	}
	for name, target := range overrides {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	applyServeFlags(cmd, cfg)
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version))
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()
	metrics := om.GetMetrics()
	startPrometheus(om, logger)

	provider, err := ai.NewProvider(ctx, cfg, logger, ai.WithRecorder(metrics))
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	stopWatcher := watchPrompts(cfg, logger)
	defer stopWatcher()

	store := session.NewStore(session.StoreOptions{
		TTL:         cfg.App.SessionTTL,
		MaxSessions: cfg.App.MaxSessions,
		Logger:      logger,
	})
	defer store.Close()

	c := coach.New(store, provider, logger, coach.WithMetrics(metrics))
	if err := metrics.ObserveSessions(c.Sessions, c.InFlight); err != nil {
		logger.LogError(err, "Failed to register session gauges")
	}

	catalog, err := i18n.New(cfg.App.Language)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	serverCfg := server.NewServerConfig(cfg, Version)
	serverCfg.Coach = c
	serverCfg.Health = provider
	serverCfg.Catalog = catalog
	serverCfg.Metrics = metrics
	serverCfg.Instrument = om.HTTPMiddleware()

	srv := server.NewServer(cfg, serverCfg, logger)
	srv.KeyWatcher, err = newKeyWatcher(cfg, srv, logger)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// startPrometheus serves the metrics endpoint when Prometheus is enabled.
// Its shutdown is part of the observability shutdown.
func startPrometheus(om *observability.ObservabilityManager, logger *errors.Logger) {
	promServer := om.PrometheusServer()
	if promServer == nil {
		return
	}
	go func() {
		logger.Info("Starting Prometheus metrics server", "address", promServer.Addr)
		if err := promServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Prometheus metrics server failed")
		}
	}()
}

// watchPrompts reloads prompt files on change when enabled
func watchPrompts(cfg *config.Config, logger *errors.Logger) func() {
	if !cfg.AI.WatchPromptFiles || len(cfg.PromptFiles()) == 0 {
		return func() {}
	}

	watcher := config.NewPromptWatcher(cfg, time.Second, func(err error) {
		if err != nil {
			logger.LogError(err, "Prompt reload failed, keeping previous prompts")
		}
	}, logger)
	if err := watcher.Start(); err != nil {
		logger.LogError(err, "Failed to start prompt watcher")
		return func() {}
	}
	return func() {
		if err := watcher.Stop(); err != nil {
			logger.LogError(err, "Failed to stop prompt watcher")
		}
	}
}

// newKeyWatcher rotates the server API keys from Vault when a key secret is
// configured and polling is enabled
func newKeyWatcher(cfg *config.Config, srv *server.Server, logger *errors.Logger) (*server.KeyWatcher, error) {
	if !cfg.Vault.Enabled || cfg.Vault.Secrets.APIKeys == "" || cfg.Vault.PollInterval <= 0 {
		return nil, nil
	}
	client, err := config.NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	return server.NewKeyWatcher(client, cfg.Vault.Secrets.APIKeys, cfg.Vault.PollInterval, srv.SetAPIKeys, logger), nil
}

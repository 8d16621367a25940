package cli

import (
	"context"
	"fmt"
	"time"

	"fairaudit/internal/config"
	"fairaudit/internal/errors"
	"fairaudit/internal/ledger"
	"fairaudit/internal/observability"
	"fairaudit/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for fairness evaluation",
	Long: `Start an HTTP server that provides REST API endpoints for fairness evaluation.

Available endpoints:
- POST /evaluate: Evaluate a batch of decision records
- GET /thresholds: The active threshold profile (?format=yaml)
- GET /evaluations: Recent recorded evaluations (ledger enabled)
- GET /evaluations/{id}: One recorded evaluation with its report
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info
- GET /metrics: Prometheus metrics (when enabled)

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
	serveCmd.Flags().Bool("record", false, "Record every evaluation in the ledger (overrides ledger.enabled)")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	overrides := []struct {
		flag   string
		target *string
	}{
		{"port", &cfg.Server.Port},
		{"host", &cfg.Server.Host},
		{"tls-mode", &cfg.Server.TLS.Mode},
		{"cert-file", &cfg.Server.TLS.CertFile},
		{"key-file", &cfg.Server.TLS.KeyFile},
		{"ca-file", &cfg.Server.TLS.CAFile},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.target, _ = flags.GetString(o.flag)
		}
	}
	if flags.Changed("record") {
		cfg.Ledger.Enabled, _ = flags.GetBool("record")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	loaded, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	cfg := *loaded
	applyServeFlags(cmd, &cfg)

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	profile, err := cfg.Fairness.ResolveThresholds()
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidProfile, "Failed to load threshold profile", err)
	}

	var store ledger.Store
	if cfg.Ledger.Enabled {
		store, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeLedgerWrite, "Failed to open ledger", err).
				WithContext("path", cfg.Ledger.Path)
		}
		defer func() { _ = store.Close() }()
	}

	vault, err := config.ApplyVaultSecrets(&cfg, logger)
	if err != nil {
		return err
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(&cfg, Version))
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(ctx); err != nil {
			logger.LogError(err, "Failed to shut down observability")
		}
	}()

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		MaxRecords:     cfg.Server.MaxRecords,
		RateLimit:      &cfg.Server.RateLimit,
		Profile:        profile,
		Ledger:         store,
		Vault:          vault,
	}
	return server.NewServer(&cfg, serverCfg, logger).Start(cmd.Context(), om)
}

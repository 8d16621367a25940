package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"fairaudit/internal/observability"
)

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, om *observability.ObservabilityManager) error {
	httpServer, err := s.setupHTTPServer(om)
	if err != nil {
		return err
	}

	if err := s.startWatchers(om); err != nil {
		return err
	}
	defer s.stopWatchers()
	defer s.cleanupRateLimiter()

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	s.displayServerInfo(httpServer.TLSConfig != nil)
	return s.serve(ctx, httpServer, listener)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) (*http.Server, error) {
	tlsConfig, err := buildTLSConfig(s.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to set up TLS: %w", err)
	}

	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      s.Handler(om),
		TLSConfig:    tlsConfig,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}, nil
}

// serve runs httpServer on listener and shuts it down when ctx ends
func (s *Server) serve(ctx context.Context, httpServer *http.Server, listener net.Listener) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", listener.Addr().String(),
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			err = httpServer.ServeTLS(listener, "", "")
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(httpServer *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return httpServer.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// startWatchers starts the threshold profile and Vault API key watchers when configured
func (s *Server) startWatchers(om *observability.ObservabilityManager) error {
	fairnessCfg := s.AppConfig.Fairness
	if fairnessCfg.WatchThresholds && fairnessCfg.ThresholdsFile != "" {
		s.profileWatcher = NewProfileWatcher(fairnessCfg.ThresholdsFile, fairnessCfg.WatchDebounce, s.profileReloader(om), s.Logger)
		if err := s.profileWatcher.Start(); err != nil {
			return fmt.Errorf("failed to start threshold profile watcher: %w", err)
		}
	}

	if s.Vault != nil && s.AppConfig.Vault.Secrets.APIKeys != "" && s.AppConfig.Vault.Secrets.RefreshInterval > 0 {
		_, version, err := s.Vault.LoadAPIKeys()
		if err != nil {
			s.Logger.LogError(err, "Failed to read initial API key version from Vault")
		}
		s.vaultWatcher = NewVaultWatcher(s.Vault, s.AppConfig.Vault.Secrets.RefreshInterval, version, s.SetAPIKeys, s.Logger)
		if err := s.vaultWatcher.Start(); err != nil {
			return fmt.Errorf("failed to start vault watcher: %w", err)
		}
	}
	return nil
}

// profileReloader swaps in the changed profile, keeping the old one when the file is invalid
func (s *Server) profileReloader(om *observability.ObservabilityManager) func(path string) {
	return func(path string) {
		changed, err := s.Profiles.Reload(path)
		name := s.Profiles.Current().Thresholds.Name()
		if err != nil {
			s.Logger.LogError(err, "Threshold profile reload failed, keeping previous profile",
				"file", path, "active_profile", name)
			om.RecordProfileReload(context.Background(), name, false)
			return
		}
		if !changed {
			s.Logger.Debug("Threshold profile unchanged", "file", path)
			return
		}
		s.Logger.Info("Threshold profile reloaded",
			"file", path,
			"profile", name,
			"hash", s.Profiles.Current().Hash)
		om.RecordProfileReload(context.Background(), name, true)
	}
}

func (s *Server) stopWatchers() {
	if s.profileWatcher != nil {
		if err := s.profileWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop threshold profile watcher")
		}
	}
	if s.vaultWatcher != nil {
		if err := s.vaultWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop vault watcher")
		}
	}
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}

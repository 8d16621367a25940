package server

import (
	"sync/atomic"
	"time"

	"fairaudit/internal/config"
	"fairaudit/internal/errors"
	"fairaudit/internal/ledger"
)

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig config.TLSConfig

	// API authentication; swapped whole when Vault rotates keys
	apiKeys atomic.Pointer[apiKeySet]

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	// Request limits
	MaxRequestSize int64
	MaxRecords     int

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Active threshold profile
	Profiles *ProfileStore

	// Optional evaluation history
	Ledger ledger.Store

	// Optional Vault client for API key rotation
	Vault *config.VaultClient

	Logger *errors.Logger

	profileWatcher *ProfileWatcher
	vaultWatcher   *VaultWatcher
	startedAt      time.Time
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	MaxRecords     int
	RateLimit      *config.RateLimitConfig
	Profile        config.LoadedProfile
	Ledger         ledger.Store
	Vault          *config.VaultClient
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		RequestTimeout: cfg.RequestTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		MaxRecords:     cfg.MaxRecords,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Profiles:       NewProfileStore(cfg.Profile),
		Ledger:         cfg.Ledger,
		Vault:          cfg.Vault,
		Logger:         logger,
		startedAt:      time.Now(),
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// apiKeySet is an immutable lookup of accepted keys
type apiKeySet map[string]struct{}

// SetAPIKeys replaces the accepted API keys. An empty list disables authentication.
func (s *Server) SetAPIKeys(keys []string) {
	set := make(apiKeySet, len(keys))
	for _, key := range keys {
		if key != "" {
			set[key] = struct{}{}
		}
	}
	s.apiKeys.Store(&set)
}

func (s *Server) keys() apiKeySet {
	if p := s.apiKeys.Load(); p != nil {
		return *p
	}
	return nil
}

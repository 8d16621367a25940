package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fairaudit/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/sony/gobreaker/v2"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets        VaultSecrets         `mapstructure:"secrets"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// VaultSecrets defines where to find secrets in Vault
type VaultSecrets struct {
	// APIKeys expects a single comma-separated string under the "keys" field
	APIKeys string `mapstructure:"apiKeys"`
	// RefreshInterval is how often the server polls APIKeys for a new version; 0 disables polling
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
}

// secretReader is the subset of the Vault logical API the client needs
type secretReader interface {
	Read(path string) (*api.Secret, error)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	reader  secretReader
	config  VaultConfig
	logger  *errors.Logger
	breaker *gobreaker.CircuitBreaker[*api.Secret]
}

// NewVaultClient creates a new Vault client from configuration.
// It returns nil without error when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled")
		}
		return nil, nil
	}

	client, err := createVaultAPIClient(config, logger)
	if err != nil {
		return nil, err
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if err := testVaultConnection(client, config.Address, logger); err != nil {
		return nil, err
	}

	return newVaultClient(client.Logical(), config, logger), nil
}

func newVaultClient(reader secretReader, config VaultConfig, logger *errors.Logger) *VaultClient {
	return &VaultClient{
		reader:  reader,
		config:  config,
		logger:  logger,
		breaker: newSecretBreaker(config.CircuitBreaker, logger),
	}
}

// newSecretBreaker returns nil when the breaker is disabled
func newSecretBreaker(cfg CircuitBreakerConfig, logger *errors.Logger) *gobreaker.CircuitBreaker[*api.Secret] {
	if !cfg.Enabled {
		return nil
	}
	settings := gobreaker.Settings{
		Name:        "vault-secrets",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}
	return gobreaker.NewCircuitBreaker[*api.Secret](settings)
}

func createVaultAPIClient(config VaultConfig, logger *errors.Logger) (*api.Client, error) {
	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to create Vault client")
		}
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	return client, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			if logger != nil {
				logger.LogError(err, "Failed to read Vault token file", "file", config.TokenFile)
			}
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

func testVaultConnection(client *api.Client, address string, logger *errors.Logger) error {
	health, err := client.Sys().Health()
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to connect to Vault", "address", address)
		}
		return fmt.Errorf("failed to connect to vault: %w", err)
	}

	if logger != nil {
		logger.Info("Successfully connected to Vault",
			"address", address,
			"version", health.Version,
			"sealed", health.Sealed)
	}
	return nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.readSecret(path)
	if err != nil {
		return nil, err
	}

	data, err := vc.extractSecretData(secret, path)
	if err != nil {
		return nil, err
	}
	version, err := vc.extractSecretVersion(secret, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// readSecret reads the raw secret through the breaker when one is configured
func (vc *VaultClient) readSecret(path string) (*api.Secret, error) {
	read := func() (*api.Secret, error) {
		secret, err := vc.reader.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
		}
		if secret == nil || secret.Data == nil {
			return nil, fmt.Errorf("secret not found at path: %s", path)
		}
		return secret, nil
	}

	var (
		secret *api.Secret
		err    error
	)
	if vc.breaker == nil {
		secret, err = read()
	} else {
		secret, err = vc.breaker.Execute(read)
	}
	if err != nil && vc.logger != nil {
		vc.logger.LogError(err, "Failed to read secret from Vault", "path", path)
	}
	return secret, err
}

// extractSecretData extracts the data field from a KVv2 secret
func (vc *VaultClient) extractSecretData(secret *api.Secret, path string) (map[string]any, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	return data, nil
}

// extractSecretVersion extracts and parses the version from a KVv2 secret
func (vc *VaultClient) extractSecretVersion(secret *api.Secret, path string) (int64, error) {
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	return parseVersionValue(versionRaw, path)
}

func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// GetStringSliceSecret retrieves a comma-separated string as a slice from Vault
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, int64, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return nil, 0, err
	}
	value, ok := secret.Data[key]
	if !ok {
		return nil, 0, fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return nil, 0, fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	if vc.logger != nil {
		vc.logger.Debug("String secret retrieved from Vault", "path", path, "key", key, "masked_value", maskSecret(str))
	}
	return splitAndTrim(str), secret.Version, nil
}

// BreakerStats reports the secret breaker state
func (vc *VaultClient) BreakerStats() map[string]any {
	if vc == nil || vc.breaker == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    vc.breaker.Name(),
		"state":   vc.breaker.State().String(),
		"counts":  vc.breaker.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether secret reads are currently allowed through
func (vc *VaultClient) IsHealthy() bool {
	if vc == nil || vc.breaker == nil {
		return true
	}
	return vc.breaker.State() == gobreaker.StateClosed
}

func maskSecret(s string) string {
	if len(s) > 8 {
		return s[:4] + "****" + s[len(s)-4:]
	}
	if len(s) > 0 {
		return "****"
	}
	return s
}

// LoadAPIKeys reads the server API keys from the configured secret path
func (vc *VaultClient) LoadAPIKeys() ([]string, int64, error) {
	path := vc.config.Secrets.APIKeys
	if path == "" {
		return nil, 0, nil
	}
	return vc.GetStringSliceSecret(path, "keys")
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config.
// The returned client is nil when Vault is disabled.
func ApplyVaultSecrets(config *Config, logger *errors.Logger) (*VaultClient, error) {
	if !config.Vault.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled, skipping secret loading")
		}
		return nil, nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeSecretFetch, "failed to initialize vault client", err)
	}
	if err := applyAPIKeys(client, config, logger); err != nil {
		return nil, err
	}
	return client, nil
}

func applyAPIKeys(client *VaultClient, config *Config, logger *errors.Logger) error {
	keys, version, err := client.LoadAPIKeys()
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeSecretFetch, "failed to load API keys from vault", err).
			WithContext("path", config.Vault.Secrets.APIKeys)
	}
	if len(keys) == 0 {
		return nil
	}
	config.Server.APIKeys = keys
	if logger != nil {
		logger.Info("Applied API keys from Vault", "count", len(keys), "version", version)
	}
	return nil
}

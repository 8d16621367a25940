package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks fills values viper cannot express directly
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()

	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
	if c.App.LogLevel == "debug" && !c.Observability.Console.Enabled {
		c.Observability.Console.Enabled = true
	}
}

// applyServerAPIKeyFallbacks trims configured keys and falls back to a
// comma-separated list from the environment
func (c *Config) applyServerAPIKeyFallbacks() {
	c.Server.APIKeys = splitAndTrim(strings.Join(c.Server.APIKeys, ","))
	if len(c.Server.APIKeys) > 0 {
		return
	}
	apiKeysEnv := os.Getenv(EnvPrefix + "_SERVER_APIKEYS")
	if apiKeysEnv == "" {
		return
	}
	c.Server.APIKeys = splitAndTrim(apiKeysEnv)
}

func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.Mode == "mutual" && c.Server.TLS.ClientAuthPolicy == "" {
		c.Server.TLS.ClientAuthPolicy = "require"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	}

	envVars := []string{
		EnvPrefix + "_SERVER_PORT",
		EnvPrefix + "_SERVER_HOST",
		EnvPrefix + "_SERVER_APIKEYS",
		EnvPrefix + "_APP_LOGLEVEL",
		EnvPrefix + "_FAIRNESS_THRESHOLDSFILE",
		EnvPrefix + "_VAULT_ENABLED",
		EnvPrefix + "_VAULT_TOKEN",
	}
	for _, envVar := range envVars {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}
		lower := strings.ToLower(envVar)
		if strings.Contains(lower, "key") || strings.Contains(lower, "token") {
			value = "***MASKED***"
		}
		log.Printf("[CONFIG] Environment override %s=%s", envVar, value)
	}

	if c.App.LogLevel == "debug" {
		log.Printf("[CONFIG] Server %s:%s, TLS %s, API keys configured: %d", c.Server.Host, c.Server.Port, c.Server.TLS.Mode, len(c.Server.APIKeys))
		log.Printf("[CONFIG] Fairness favorable=%d minRecords=%d lenient=%t thresholds=%q",
			c.Fairness.FavorableLabel, c.Fairness.MinRecords, c.Fairness.Lenient, c.Fairness.ThresholdsFile)
		log.Printf("[CONFIG] Vault enabled: %t, observability enabled: %t", c.Vault.Enabled, c.Observability.Enabled)
	}
}

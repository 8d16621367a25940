package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB of records

	// Fairness Configuration
	v.SetDefault("fairness.favorableLabel", 1)
	v.SetDefault("fairness.privilegedGroup", "")
	v.SetDefault("fairness.minRecords", 10)
	v.SetDefault("fairness.lenient", false)
	v.SetDefault("fairness.thresholdsFile", "")
	v.SetDefault("fairness.watchThresholds", false)
	v.SetDefault("fairness.watchDebounce", 500*time.Millisecond)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.requestTimeout", 20*time.Second)
	v.SetDefault("server.maxRecords", 100000)

	// TLS Configuration defaults
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require")

	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.refreshInterval", 5*time.Minute)
	v.SetDefault("vault.circuitBreaker.enabled", true)
	v.SetDefault("vault.circuitBreaker.maxRequests", 1)
	v.SetDefault("vault.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("vault.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("vault.circuitBreaker.minRequests", 3)
	v.SetDefault("vault.circuitBreaker.failureThreshold", 0.6)

	// Ledger Configuration
	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.path", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "fairaudit")
	v.SetDefault("observability.serviceVersion", "")  // Uses the build version if empty
	v.SetDefault("observability.serviceInstance", "") // Derived from hostname if empty
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.evaluations.enabled", true)
	v.SetDefault("observability.customMetrics.evaluations.trackDuration", true)
	v.SetDefault("observability.customMetrics.evaluations.trackScores", true)
	v.SetDefault("observability.customMetrics.evaluations.trackViolations", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackProfileReloads", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

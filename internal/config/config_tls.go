package config

import (
	"fmt"
	"slices"
	"strings"
)

// tlsModeFiles lists the PEM files each TLS mode needs.
var tlsModeFiles = map[string][]string{
	"":         nil,
	"disabled": nil,
	"server":   {"certFile", "keyFile"},
	"mutual":   {"certFile", "keyFile", "caFile"},
}

var (
	clientAuthPolicies = []string{"", "require", "request", "verify"}
	tlsMinVersions     = []string{"", "1.2", "1.3"}
)

// Validate checks the mode, the files it needs, the client auth policy and the minimum version.
func (t TLSConfig) Validate() error {
	required, ok := tlsModeFiles[t.Mode]
	if !ok {
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", t.Mode)
	}

	files := map[string]string{"certFile": t.CertFile, "keyFile": t.KeyFile, "caFile": t.CAFile}
	var missing []string
	for _, name := range required {
		if files[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("TLS %s mode requires %s", t.Mode, strings.Join(missing, " and "))
	}

	if t.Mode == "mutual" && !slices.Contains(clientAuthPolicies, t.ClientAuthPolicy) {
		return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", t.ClientAuthPolicy)
	}
	if !slices.Contains(tlsMinVersions, t.MinVersion) {
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", t.MinVersion)
	}
	return nil
}

// ValidateTLSConfig validates the server TLS section after flag overrides.
func (c *Config) ValidateTLSConfig() error {
	return c.Server.TLS.Validate()
}

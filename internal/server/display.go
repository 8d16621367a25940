package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(tlsEnabled bool) {
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	fmt.Printf("Listening on %s://%s:%s (TLS mode: %s)\n", scheme, s.Host, s.Port, s.tlsModeLabel())
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayLimits()
}

func (s *Server) tlsModeLabel() string {
	if s.TLSConfig.Mode == "" {
		return "disabled"
	}
	return s.TLSConfig.Mode
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health            - Health check")
	fmt.Println("  GET  /stats             - Server statistics")
	fmt.Println("  POST /evaluate          - Evaluate a batch of decisions")
	fmt.Println("  GET  /thresholds        - Active threshold profile")
	if s.Ledger != nil {
		fmt.Println("  GET  /evaluations       - Recorded evaluations")
		fmt.Println("  GET  /evaluations/{id}  - One recorded evaluation")
	}
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if n := len(s.keys()); n > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", n)
		return
	}
	fmt.Println("API authentication: DISABLED (no API keys configured)")
	fmt.Println("WARNING: API endpoints are publicly accessible!")
}

// displayLimits shows request size and rate limit configuration
func (s *Server) displayLimits() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB), %d records\n",
			s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024), s.MaxRecords)
	} else {
		fmt.Println("Request size limit: DISABLED")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		return
	}
	fmt.Println("Rate limiting: DISABLED")
}

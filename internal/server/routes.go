package server

import (
	"net/http"

	"fairaudit/internal/observability"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware(om)
	protected := func(h http.Handler) http.Handler {
		return rateLimit(s.authMiddleware(h))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.Handle("POST /evaluate", protected(s.requestSizeLimitMiddleware(s.evaluateHandler(om))))
	mux.Handle("GET /thresholds", protected(http.HandlerFunc(s.thresholdsHandler)))

	if s.Ledger != nil {
		mux.Handle("GET /evaluations", protected(http.HandlerFunc(s.listEvaluationsHandler)))
		mux.Handle("GET /evaluations/{id}", protected(http.HandlerFunc(s.getEvaluationHandler)))
	}

	if handler := om.PrometheusHandler(); handler != nil {
		mux.Handle("GET "+om.PrometheusEndpoint(), handler)
	}

	return mux
}

// Handler returns the fully wrapped HTTP handler, including tracing middleware.
func (s *Server) Handler(om *observability.ObservabilityManager) http.Handler {
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

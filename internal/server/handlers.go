package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"fairaudit/internal/config"
	"fairaudit/internal/errors"
	"fairaudit/internal/fairness"
	"fairaudit/internal/ledger"
	"fairaudit/internal/observability"
	"fairaudit/internal/types"
)

// evaluateHandler runs one batch through the engine against the active profile
func (s *Server) evaluateHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EvaluateRequest
		if err := parseJSONRequest(r, &req); err != nil {
			s.writeAppError(w, r, err)
			return
		}

		if s.MaxRecords > 0 && len(req.Records) > s.MaxRecords {
			s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeRequestTooLarge,
				fmt.Sprintf("request holds %d records, limit is %d", len(req.Records), s.MaxRecords), nil).
				WithContext("max_records", s.MaxRecords))
			return
		}

		profile := s.Profiles.Current()
		engine, err := s.engineFor(req, profile)
		if err != nil {
			s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err))
			return
		}

		ctx := r.Context()
		if s.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
			defer cancel()
		}

		report, err := om.TrackEvaluation(ctx, "http", func(ctx context.Context) (fairness.FairnessReport, error) {
			return evaluateWithContext(ctx, engine, req.Records)
		})
		if err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) {
				s.writeAppError(w, r, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
					fmt.Sprintf("evaluation did not finish within %s", s.RequestTimeout), err))
				return
			}
			s.writeAppError(w, r, errors.FromFairness(err))
			return
		}

		fingerprint, err := report.Fingerprint()
		if err != nil {
			s.writeAppError(w, r, errors.NewInternalError(errors.ErrCodeEvaluationFailed, "failed to fingerprint report", err))
			return
		}

		id := ledger.NewEvaluationID()
		if s.Ledger != nil {
			if _, err := ledger.Record(r.Context(), s.Ledger, id, "http", profile.Hash, report); err != nil {
				s.writeAppError(w, r, errors.NewIOError(errors.ErrCodeLedgerWrite, "failed to record evaluation", err))
				return
			}
		}

		s.Logger.Info("Evaluation completed",
			"evaluation_id", id,
			"records", report.Summary.TotalRecords,
			"skipped", report.Summary.SkippedRecords,
			"violations", len(report.Violations),
			"score", report.Summary.FairnessScore,
			"grade", report.Summary.Grade,
			"profile", report.ThresholdProfile)

		writeJSON(w, http.StatusOK, types.EvaluateResponse{
			EvaluationID: id,
			Fingerprint:  fingerprint,
			Report:       report,
		})
	}
}

// engineFor builds an engine from the configured defaults, the request overrides
// and the profile snapshot taken for this request.
func (s *Server) engineFor(req types.EvaluateRequest, profile *ActiveProfile) (*fairness.Engine, error) {
	opts := s.AppConfig.Fairness.EngineOptions(profile.Thresholds)
	if req.FavorableLabel != nil {
		opts.FavorableLabel = *req.FavorableLabel
	}
	if req.PrivilegedGroup != nil {
		opts.PrivilegedGroup = *req.PrivilegedGroup
	}
	if req.Lenient != nil {
		opts.Mode = fairness.Strict
		if *req.Lenient {
			opts.Mode = fairness.Lenient
		}
	}
	return fairness.NewEngine(opts)
}

// evaluateWithContext returns early when ctx ends. The engine is pure, so an
// abandoned evaluation only costs CPU until it finishes.
func evaluateWithContext(ctx context.Context, engine *fairness.Engine, records []fairness.DecisionRecord) (fairness.FairnessReport, error) {
	type result struct {
		report fairness.FairnessReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := engine.Evaluate(records)
		done <- result{report, err}
	}()

	select {
	case res := <-done:
		return res.report, res.err
	case <-ctx.Done():
		return fairness.FairnessReport{}, ctx.Err()
	}
}

// thresholdsHandler describes the active profile; ?format=yaml returns the profile document
func (s *Server) thresholdsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "yaml" {
		data, err := config.MarshalThresholdProfile(s.Profiles.Current().Thresholds)
		if err != nil {
			s.writeAppError(w, r, errors.NewInternalError(errors.ErrCodeInvalidProfile, "failed to encode profile", err))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, s.Profiles.Describe())
}

// healthHandler reports the service and the components it relies on
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"thresholds": "ok: " + s.Profiles.Current().Thresholds.Name(),
		"ledger":     "disabled",
		"vault":      "disabled",
	}
	healthy := true

	if s.Ledger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := s.Ledger.List(ctx, 1); err != nil {
			checks["ledger"] = "error: " + err.Error()
			healthy = false
		} else {
			checks["ledger"] = "ok"
		}
	}

	if s.Vault != nil {
		if s.Vault.IsHealthy() {
			checks["vault"] = "ok"
		} else {
			checks["vault"] = "circuit open"
			healthy = false
		}
	}

	response := types.HealthResponse{Status: "healthy", Version: s.Version, Checks: checks}
	status := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	profile := s.Profiles.Current()
	response := map[string]any{
		"service":        "fairaudit",
		"version":        s.Version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"max_records":            s.MaxRecords,
			"request_timeout":        s.RequestTimeout.String(),
			"api_keys_configured":    len(s.keys()),
		},
		"threshold_profile": map[string]any{
			"name":      profile.Thresholds.Name(),
			"hash":      profile.Hash,
			"source":    profile.Source(),
			"loaded_at": profile.LoadedAt.UTC(),
			"watching":  s.profileWatcher != nil && s.profileWatcher.IsRunning(),
		},
		"ledger_enabled": s.Ledger != nil,
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.Vault != nil {
		vault := map[string]any{"circuit_breaker": s.Vault.BreakerStats()}
		if s.vaultWatcher != nil {
			vault["watcher"] = s.vaultWatcher.Status()
		}
		response["vault"] = vault
	}

	writeJSON(w, http.StatusOK, response)
}

// listEvaluationsHandler returns recorded evaluations, newest first
func (s *Server) listEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := ledger.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"limit must be a positive integer", err).WithContext("limit", raw))
			return
		}
		limit = n
	}

	entries, err := s.Ledger.List(r.Context(), limit)
	if err != nil {
		s.writeAppError(w, r, errors.NewIOError(errors.ErrCodeLedgerRead, "failed to list evaluations", err))
		return
	}
	writeJSON(w, http.StatusOK, types.EvaluationListResponse{Evaluations: entries, Count: len(entries)})
}

// getEvaluationHandler returns one stored evaluation with its report
func (s *Server) getEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, body, err := s.Ledger.Get(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, ledger.ErrNotFound) {
			s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeNotFound, "evaluation not found", err).
				WithContext("evaluation_id", id))
			return
		}
		s.writeAppError(w, r, errors.NewIOError(errors.ErrCodeLedgerRead, "failed to read evaluation", err))
		return
	}
	writeJSON(w, http.StatusOK, types.EvaluationRecordResponse{Entry: entry, Report: json.RawMessage(body)})
}

// parseJSONRequest strictly decodes a JSON request body into v
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", err)
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeRequestTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON: "+err.Error(), err)
	}
	if dec.More() {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "request body must hold a single JSON object", nil)
	}
	return nil
}

// statusForError maps an application error onto an HTTP status
func statusForError(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeNetworkTimeout:
		return http.StatusGatewayTimeout
	}
	if appErr.Type == errors.ErrorTypeValidation {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeAppError logs err and writes it as an ErrorResponse
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError(errors.ErrCodeEvaluationFailed, "internal error", err)
	}
	status := statusForError(appErr)

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(appErr, "Request failed", "endpoint", r.URL.Path, "status", status)
	} else {
		s.Logger.Debug("Request rejected", "endpoint", r.URL.Path, "status", status, "code", appErr.Code)
	}

	writeErrorResponse(w, status, appErr.Message, appErr.Code, appErr.Context)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, status int, message, code string, details map[string]any) {
	writeJSON(w, status, types.ErrorResponse{Error: message, Code: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

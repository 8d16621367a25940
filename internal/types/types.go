package types

import (
	"encoding/json"
	"time"

	"fairaudit/internal/fairness"
)

// EvaluateRequest is the body of POST /evaluate.
// Optional fields fall back to the server's configured defaults.
type EvaluateRequest struct {
	Records         []fairness.DecisionRecord `json:"records"`
	FavorableLabel  *int                      `json:"favorable_label,omitempty"`
	PrivilegedGroup *string                   `json:"privileged_group,omitempty"`
	Lenient         *bool                     `json:"lenient,omitempty"`
}

// EvaluateResponse wraps a report with the identifiers the server assigned.
type EvaluateResponse struct {
	EvaluationID string                  `json:"evaluation_id"`
	Fingerprint  string                  `json:"fingerprint"`
	Report       fairness.FairnessReport `json:"report"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ThresholdProfileResponse describes the active threshold profile.
type ThresholdProfileResponse struct {
	Name     string    `json:"name"`
	Hash     string    `json:"hash"`
	Source   string    `json:"source"` // file path, or "builtin"
	LoadedAt time.Time `json:"loaded_at"`
	Profile  any       `json:"profile"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// LedgerEntry is one recorded evaluation.
type LedgerEntry struct {
	EvaluationID   string    `json:"evaluation_id"`
	CreatedAt      time.Time `json:"created_at"`
	Source         string    `json:"source"`
	Fingerprint    string    `json:"fingerprint"`
	ProfileName    string    `json:"profile_name"`
	ProfileHash    string    `json:"profile_hash"`
	TotalRecords   int       `json:"total_records"`
	SkippedRecords int       `json:"skipped_records"`
	BiasDetected   bool      `json:"bias_detected"`
	FairnessScore  float64   `json:"fairness_score"`
	Grade          string    `json:"grade"`
	Violations     int       `json:"violations"`
}

// EvaluationListResponse is returned by GET /evaluations, newest first.
type EvaluationListResponse struct {
	Evaluations []LedgerEntry `json:"evaluations"`
	Count       int           `json:"count"`
}

// EvaluationRecordResponse is one stored evaluation with its full report.
type EvaluationRecordResponse struct {
	Entry  LedgerEntry     `json:"entry"`
	Report json.RawMessage `json:"report"`
}

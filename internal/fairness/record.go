package fairness

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DecisionRecord is one hiring decision annotated with the protected
// group it belongs to. Pointer fields distinguish "absent" from zero.
type DecisionRecord struct {
	GroupLabel       string   `json:"group_label"`
	PredictedLabel   *int     `json:"predicted_label"`
	GroundTruthLabel *int     `json:"ground_truth_label,omitempty"`
	ContinuousScore  *float64 `json:"continuous_score,omitempty"`
}

// NewRecord builds a record without ground truth.
func NewRecord(group string, predicted int) DecisionRecord {
	return DecisionRecord{GroupLabel: group, PredictedLabel: &predicted}
}

// WithGroundTruth returns a copy carrying the given ground truth label.
func (r DecisionRecord) WithGroundTruth(actual int) DecisionRecord {
	r.GroundTruthLabel = &actual
	return r
}

// WithScore returns a copy carrying the given continuous score.
func (r DecisionRecord) WithScore(score float64) DecisionRecord {
	r.ContinuousScore = &score
	return r
}

// ValidationMode controls how invalid records are handled.
type ValidationMode int

const (
	// Strict aborts the batch on the first invalid record.
	Strict ValidationMode = iota
	// Lenient skips invalid records and counts them.
	Lenient
)

func (m ValidationMode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// normalizeLabel maps canonically equivalent labels onto one group.
func normalizeLabel(label string) string {
	return norm.NFC.String(label)
}

func isBinary(v int) bool {
	return v == 0 || v == 1
}

// validate checks one record and returns the normalized group label.
func validate(index int, r DecisionRecord) (string, error) {
	if strings.TrimSpace(r.GroupLabel) == "" {
		return "", &InvalidRecordError{Index: index, Field: "group_label", Reason: "is required"}
	}
	if r.PredictedLabel == nil {
		return "", &InvalidRecordError{Index: index, Field: "predicted_label", Reason: "is required"}
	}
	if !isBinary(*r.PredictedLabel) {
		return "", &InvalidRecordError{Index: index, Field: "predicted_label", Reason: "must be 0 or 1"}
	}
	if r.GroundTruthLabel != nil && !isBinary(*r.GroundTruthLabel) {
		return "", &InvalidRecordError{Index: index, Field: "ground_truth_label", Reason: "must be 0 or 1"}
	}
	if r.ContinuousScore != nil && (math.IsNaN(*r.ContinuousScore) || math.IsInf(*r.ContinuousScore, 0)) {
		return "", &InvalidRecordError{Index: index, Field: "continuous_score", Reason: "must be a finite number"}
	}
	return normalizeLabel(r.GroupLabel), nil
}

package fairness

import (
	"fmt"
	"strings"
)

// InsufficientDataError is returned when the batch is too small for rates
// to be meaningful.
type InsufficientDataError struct {
	Count   int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d records, at least %d required", e.Count, e.Minimum)
}

// SingleGroupError is returned when fewer than two distinct groups are present.
type SingleGroupError struct {
	Groups []string
}

func (e *SingleGroupError) Error() string {
	if len(e.Groups) == 0 {
		return "no group labels present, at least 2 groups required"
	}
	return fmt.Sprintf("only one group present (%s), at least 2 groups required", strings.Join(e.Groups, ", "))
}

// InvalidRecordError identifies a record that is missing a required field
// or carries a value outside its domain.
type InvalidRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record at index %d: field %s %s", e.Index, e.Field, e.Reason)
}

// UnknownGroupError is returned when the designated privileged group does
// not occur in the batch.
type UnknownGroupError struct {
	Group string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("privileged group %q not present in records", e.Group)
}

// MetricNotComputableWarning is non-fatal: the metric is reported as null
// with Reason and the rest of the report is still produced.
type MetricNotComputableWarning struct {
	Metric string
	Reason string
}

func (w MetricNotComputableWarning) String() string {
	return fmt.Sprintf("%s not computable: %s", w.Metric, w.Reason)
}

// Reasons attached to not-computable metrics.
const (
	ReasonGroundTruthUnavailable = "ground_truth_unavailable"
	ReasonInsufficientGroups     = "insufficient_groups_with_rate"
	ReasonNoFavorableOutcomes    = "no_favorable_outcomes"
	ReasonZeroMeanBenefit        = "zero_mean_benefit"
	ReasonNegativeBenefit        = "negative_benefit"
	ReasonNoRecords              = "no_records"
	ReasonNotFinite              = "not_finite"
	ReasonUnspecified            = "unspecified"
)

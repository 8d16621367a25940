package fairness

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
)

// Summary is the headline of a report.
type Summary struct {
	TotalRecords   int     `json:"total_records"`
	SkippedRecords int     `json:"skipped_records"`
	BiasDetected   bool    `json:"bias_detected"`
	FairnessScore  float64 `json:"fairness_score"`
	Grade          string  `json:"grade"`
}

// MetricDetail explains one metric value.
type MetricDetail struct {
	Value  Optional `json:"value"`
	Reason string   `json:"reason,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// FairnessReport is the complete outcome of one evaluation. Maps encode
// with sorted keys, so equal reports encode to equal bytes.
type FairnessReport struct {
	Summary            Summary                    `json:"summary"`
	FairnessMetrics    map[string]Optional        `json:"fairness_metrics"`
	UnavailableMetrics map[string]string          `json:"unavailable_metrics"`
	MetricDetails      map[string]MetricDetail    `json:"metric_details"`
	CustomMetrics      map[string]MetricDetail    `json:"custom_metrics,omitempty"`
	GroupStatistics    map[string]GroupStatistics `json:"group_statistics"`
	Violations         []Violation                `json:"violations"`
	Recommendations    []string                   `json:"recommendations"`
	ThresholdProfile   string                     `json:"threshold_profile"`
}

// ReportParts are the pipeline outputs a report is assembled from.
type ReportParts struct {
	Stats           GroupStatisticsSet
	Metrics         MetricSet
	Custom          []CustomResult
	Detection       Detection
	Score           Score
	Recommendations []string
	Profile         string
}

// AssembleReport copies everything it is given; the report shares no
// memory with parts.
func AssembleReport(parts ReportParts) FairnessReport {
	r := FairnessReport{
		Summary: Summary{
			TotalRecords:   parts.Stats.Total(),
			SkippedRecords: parts.Stats.Skipped(),
			BiasDetected:   parts.Detection.BiasDetected,
			FairnessScore:  parts.Score.Value,
			Grade:          parts.Score.Grade,
		},
		FairnessMetrics:    make(map[string]Optional, numMetricKinds),
		UnavailableMetrics: make(map[string]string),
		MetricDetails:      make(map[string]MetricDetail, numMetricKinds),
		GroupStatistics:    make(map[string]GroupStatistics, parts.Stats.Len()),
		Violations:         make([]Violation, 0, len(parts.Detection.Violations)),
		Recommendations:    slices.Clone(parts.Recommendations),
		ThresholdProfile:   parts.Profile,
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}

	for _, k := range AllMetricKinds() {
		res := parts.Metrics.Get(k)
		r.FairnessMetrics[k.String()] = res.Value
		r.MetricDetails[k.String()] = detailOf(res)
	}
	if len(parts.Custom) > 0 {
		r.CustomMetrics = make(map[string]MetricDetail, len(parts.Custom))
		for _, c := range parts.Custom {
			r.CustomMetrics[c.Name] = detailOf(c.Result)
		}
	}
	for _, w := range parts.Detection.Unavailable {
		r.UnavailableMetrics[w.Metric] = w.Reason
	}
	for _, label := range parts.Stats.labels {
		g := parts.Stats.groups[label]
		if g.Confusion != nil {
			cm := *g.Confusion
			g.Confusion = &cm
		}
		r.GroupStatistics[label] = g
	}
	for _, v := range parts.Detection.Violations {
		v.AffectedGroups = slices.Clone(v.AffectedGroups)
		if v.AffectedGroups == nil {
			v.AffectedGroups = []string{}
		}
		r.Violations = append(r.Violations, v)
	}
	return r
}

func detailOf(res MetricResult) MetricDetail {
	return MetricDetail{Value: res.Value, Reason: res.Reason, Groups: res.Groups()}
}

// Fingerprint is the sha256 of the JSON encoding, prefixed "sha256:".
func (r FairnessReport) Fingerprint() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

package fairness

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleReportDoesNotAlias(t *testing.T) {
	stats := mustStats(t, oddsFixture())
	metrics, err := ComputeMetrics(stats, "")
	require.NoError(t, err)
	det := NewBiasDetector(DefaultThresholds()).Detect(metrics, nil)
	require.NotEmpty(t, det.Violations)
	recs := NewRecommendationGenerator(DefaultProfileName).Generate(det)

	r := AssembleReport(ReportParts{
		Stats:           stats,
		Metrics:         metrics,
		Detection:       det,
		Score:           DefaultScoringPolicy().Score(det.Violations),
		Recommendations: recs,
		Profile:         DefaultProfileName,
	})

	recs[0] = "changed"
	det.Violations[0].AffectedGroups[0] = "changed"
	assert.NotEqual(t, "changed", r.Recommendations[0])
	assert.NotEqual(t, "changed", r.Violations[0].AffectedGroups[0])

	a := r.GroupStatistics["A"]
	a.Confusion.TruePositive = 99
	orig, _ := stats.Get("A")
	assert.Equal(t, 2, orig.Confusion.TruePositive)
	assert.Nil(t, r.CustomMetrics)
}

func TestReportJSONShape(t *testing.T) {
	e := mustEngine(t, nil)
	r, err := e.Evaluate(oddsFixture())
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, key := range []string{"summary", "fairness_metrics", "group_statistics", "violations", "recommendations", "unavailable_metrics", "metric_details", "threshold_profile"} {
		assert.Contains(t, doc, key)
	}
	assert.NotContains(t, doc, "custom_metrics")

	summary := doc["summary"].(map[string]any)
	for _, key := range []string{"total_records", "bias_detected", "fairness_score", "grade", "skipped_records"} {
		assert.Contains(t, summary, key)
	}

	metrics := doc["fairness_metrics"].(map[string]any)
	assert.Len(t, metrics, len(AllMetricKinds()))

	v := doc["violations"].([]any)[0].(map[string]any)
	for _, key := range []string{"metric", "comparison", "value", "threshold", "severity", "affected_groups"} {
		assert.Contains(t, v, key)
	}

	group := doc["group_statistics"].(map[string]any)["A"].(map[string]any)
	for _, key := range []string{"count", "selected", "selection_rate", "true_positive_rate", "false_positive_rate", "precision"} {
		assert.Contains(t, group, key)
	}

	var back FairnessReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Summary, back.Summary)
	assert.Equal(t, r.Recommendations, back.Recommendations)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	spread := CustomMetricFunc(func(stats GroupStatisticsSet) MetricResult {
		return Computed(float64(stats.Len()), nil)
	})

	require.NoError(t, reg.Register("group_count", spread, nil))
	assert.ErrorIs(t, reg.Register("", spread, nil), ErrEmptyMetricName)
	assert.ErrorIs(t, reg.Register("group_count", spread, nil), ErrDuplicateMetricName)
	assert.ErrorIs(t, reg.Register("disparate_impact", spread, nil), ErrReservedMetricName)
	assert.Error(t, reg.Register("nil_metric", nil, nil))
	assert.Error(t, reg.Register("bad_rule", spread, &Rule{Threshold: 1}))

	rule := Rule{Direction: AtMost, Threshold: 1, Otherwise: SeverityHigh}
	require.NoError(t, reg.Register("many_groups", spread, &rule))
	assert.Equal(t, []string{"group_count", "many_groups"}, reg.Names())

	e := mustEngine(t, func(o *Options) { o.Registry = reg })

	// Later registrations do not leak into an existing engine.
	require.NoError(t, reg.Register("late", spread, nil))

	r, err := e.Evaluate(concat(outcomes("A", 1, 0), outcomes("B", 1, 0)))
	require.NoError(t, err)
	require.Len(t, r.CustomMetrics, 2)
	v, ok := r.CustomMetrics["group_count"].Value.Get()
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	require.Len(t, r.Violations, 1)
	assert.Equal(t, "many_groups", r.Violations[0].Metric)
	assert.Equal(t, SeverityHigh, r.Violations[0].Severity)
	_, core := r.Violations[0].Kind()
	assert.False(t, core)
	assert.Contains(t, r.Recommendations[0], `Custom metric "many_groups"`)
}

func TestErrorsMatchWithAs(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &SingleGroupError{Groups: []string{"A"}})
	var target *SingleGroupError
	assert.True(t, errors.As(wrapped, &target))
	assert.Contains(t, target.Error(), "only one group present (A)")
}

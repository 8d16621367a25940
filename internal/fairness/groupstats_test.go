package fairness

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGroupStatisticsRates(t *testing.T) {
	records := concat(
		labeled("A", [2]int{1, 1}, [2]int{1, 0}, [2]int{0, 1}, [2]int{0, 0}, [2]int{1, 1}),
		outcomes("B", 0, 1),
		labeled("C", [2]int{0, 0}, [2]int{0, 0}),
	)
	stats := mustStats(t, records)

	assert.Equal(t, []string{"A", "B", "C"}, stats.Labels())
	assert.Equal(t, 9, stats.Total())
	assert.True(t, stats.HasGroundTruth())

	a, ok := stats.Get("A")
	require.True(t, ok)
	assert.Equal(t, 5, a.Count)
	assert.Equal(t, 3, a.SelectedCount)
	require.NotNil(t, a.Confusion)
	assert.Equal(t, ConfusionMatrix{TruePositive: 2, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, *a.Confusion)

	expect := map[string]struct {
		got  Optional
		want float64
	}{
		"selection_rate":      {a.SelectionRate, 0.6},
		"true_positive_rate":  {a.TruePositiveRate, 2.0 / 3.0},
		"false_positive_rate": {a.FalsePositiveRate, 0.5},
		"false_negative_rate": {a.FalseNegativeRate, 1.0 / 3.0},
		"precision":           {a.Precision, 2.0 / 3.0},
	}
	for name, e := range expect {
		v, ok := e.got.Get()
		assert.True(t, ok, name)
		assert.InDelta(t, e.want, v, 1e-12, name)
	}

	b, _ := stats.Get("B")
	assert.False(t, b.HasGroundTruth())
	assert.False(t, b.TruePositiveRate.IsKnown())

	// C has no qualified members and no positive decisions.
	c, _ := stats.Get("C")
	assert.False(t, c.TruePositiveRate.IsKnown())
	assert.False(t, c.Precision.IsKnown())
	fpr, ok := c.FalsePositiveRate.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, fpr)
}

func TestGroupStatisticsJSON(t *testing.T) {
	stats := mustStats(t, concat(
		labeled("A", [2]int{0, 0}, [2]int{1, 0}),
		outcomes("B", 1, 0),
	))

	a, _ := stats.Get("A")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Nil(t, fields["true_positive_rate"], "TPR has zero denominator and must be null")
	assert.Contains(t, fields, "true_positive_rate")
	assert.Equal(t, 0.5, fields["false_positive_rate"])
	assert.Equal(t, 1.0, fields["selected"])

	b, _ := stats.Get("B")
	data, err = json.Marshal(b)
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"true_positive", "true_positive_rate", "false_positive_rate", "precision"} {
		assert.NotContains(t, fields, key)
	}

	var back GroupStatistics
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, b.Count, back.Count)
	assert.Equal(t, b.SelectedCount, back.SelectedCount)
	assert.Nil(t, back.Confusion)
}

func TestComputeGroupStatisticsErrors(t *testing.T) {
	badLabel := 2
	tests := []struct {
		name    string
		records []DecisionRecord
		opts    StatisticsOptions
		check   func(t *testing.T, err error)
	}{
		{
			name:    "below minimum",
			records: concat(outcomes("A", 1, 1), outcomes("B", 0, 0)),
			opts:    StatisticsOptions{FavorableLabel: 1},
			check: func(t *testing.T, err error) {
				var target *InsufficientDataError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 4, target.Count)
				assert.Equal(t, DefaultMinRecords, target.Minimum)
			},
		},
		{
			name:    "empty batch",
			records: nil,
			opts:    StatisticsOptions{FavorableLabel: 1, MinRecords: 1},
			check: func(t *testing.T, err error) {
				var target *InsufficientDataError
				require.ErrorAs(t, err, &target)
			},
		},
		{
			name:    "single group",
			records: outcomes("A", 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1),
			opts:    StatisticsOptions{FavorableLabel: 1},
			check: func(t *testing.T, err error) {
				var target *SingleGroupError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, []string{"A"}, target.Groups)
			},
		},
		{
			name:    "missing group label",
			records: concat(outcomes("A", 1), outcomes("  ", 0)),
			opts:    StatisticsOptions{FavorableLabel: 1, MinRecords: 1},
			check: func(t *testing.T, err error) {
				var target *InvalidRecordError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 1, target.Index)
				assert.Equal(t, "group_label", target.Field)
			},
		},
		{
			name:    "missing predicted label",
			records: []DecisionRecord{NewRecord("A", 1), {GroupLabel: "B"}},
			opts:    StatisticsOptions{FavorableLabel: 1, MinRecords: 1},
			check: func(t *testing.T, err error) {
				var target *InvalidRecordError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "predicted_label", target.Field)
			},
		},
		{
			name:    "non-binary ground truth",
			records: []DecisionRecord{NewRecord("A", 1), {GroupLabel: "B", PredictedLabel: new(int), GroundTruthLabel: &badLabel}},
			opts:    StatisticsOptions{FavorableLabel: 1, MinRecords: 1},
			check: func(t *testing.T, err error) {
				var target *InvalidRecordError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "ground_truth_label", target.Field)
				assert.Equal(t, "invalid record at index 1: field ground_truth_label must be 0 or 1", target.Error())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeGroupStatistics(tt.records, tt.opts)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestComputeGroupStatisticsLenient(t *testing.T) {
	records := concat(outcomes("A", 1, 0), []DecisionRecord{{GroupLabel: ""}, {GroupLabel: "B"}}, outcomes("B", 1, 1))

	stats, err := ComputeGroupStatistics(records, StatisticsOptions{FavorableLabel: 1, MinRecords: 4, Mode: Lenient})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total())
	assert.Equal(t, 2, stats.Skipped())

	// The minimum applies to valid records only.
	_, err = ComputeGroupStatistics(records, StatisticsOptions{FavorableLabel: 1, MinRecords: 5, Mode: Lenient})
	var target *InsufficientDataError
	assert.True(t, errors.As(err, &target))
}

func TestComputeGroupStatisticsFavorableZero(t *testing.T) {
	stats, err := ComputeGroupStatistics(concat(outcomes("A", 0, 0, 1), outcomes("B", 1, 1, 1)),
		StatisticsOptions{FavorableLabel: 0, MinRecords: 1})
	require.NoError(t, err)
	a, _ := stats.Get("A")
	b, _ := stats.Get("B")
	assert.Equal(t, 2, a.SelectedCount)
	assert.Equal(t, 0, b.SelectedCount)
}

func TestGroupLabelsAreNormalized(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	stats := mustStats(t, concat(outcomes(composed, 1), outcomes(decomposed, 0), outcomes("other", 1)))

	assert.Equal(t, 2, stats.Len())
	g, ok := stats.Get(composed)
	require.True(t, ok)
	assert.Equal(t, 2, g.Count)
}

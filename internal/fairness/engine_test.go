package fairness

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricValue(t *testing.T, r FairnessReport, k MetricKind) float64 {
	t.Helper()
	v, ok := r.FairnessMetrics[k.String()].Get()
	require.Truef(t, ok, "%s is null", k)
	return v
}

func TestEvaluatePerfectFairness(t *testing.T) {
	e := mustEngine(t, func(o *Options) { o.MinRecords = 8 })
	r, err := e.Evaluate(concat(outcomes("A", 1, 1, 0, 0), outcomes("B", 1, 0, 1, 0)))
	require.NoError(t, err)

	assert.Equal(t, 0.0, metricValue(t, r, MetricDemographicParityDifference))
	assert.Equal(t, 1.0, metricValue(t, r, MetricDisparateImpact))
	assert.False(t, r.Summary.BiasDetected)
	assert.Equal(t, 100.0, r.Summary.FairnessScore)
	assert.Equal(t, "A+", r.Summary.Grade)
	assert.Equal(t, 8, r.Summary.TotalRecords)
	assert.Empty(t, r.Violations)
	require.NotEmpty(t, r.Recommendations)
	assert.Contains(t, r.Recommendations[0], "No fairness violations")
	assert.Equal(t, DefaultProfileName, r.ThresholdProfile)
}

func TestEvaluateTotalExclusion(t *testing.T) {
	e := mustEngine(t, func(o *Options) { o.MinRecords = 4 })
	r, err := e.Evaluate(concat(outcomes("A", 1, 1), outcomes("B", 0, 0)))
	require.NoError(t, err)

	assert.Equal(t, 1.0, metricValue(t, r, MetricDemographicParityDifference))
	assert.Equal(t, 0.0, metricValue(t, r, MetricDisparateImpact))
	assert.True(t, r.Summary.BiasDetected)
	assert.LessOrEqual(t, r.Summary.FairnessScore, 70.0)

	var di *Violation
	for i := range r.Violations {
		if r.Violations[i].Metric == "disparate_impact" {
			di = &r.Violations[i]
		}
	}
	require.NotNil(t, di)
	assert.Equal(t, SeverityCritical, di.Severity)
	assert.Equal(t, []string{"B", "A"}, di.AffectedGroups)
	// One line per violation plus the missing ground truth note.
	assert.Len(t, r.Recommendations, len(r.Violations)+1)
	assert.True(t, strings.HasPrefix(r.Recommendations[0], "[critical]"))
}

func TestEvaluateDefaultMinimum(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	_, err = e.Evaluate(concat(outcomes("A", 1, 1), outcomes("B", 0, 0)))
	var short *InsufficientDataError
	require.ErrorAs(t, err, &short)

	_, err = e.Evaluate(outcomes("A", 1, 0, 1, 0, 1, 0, 1, 0, 1, 0))
	var single *SingleGroupError
	require.ErrorAs(t, err, &single)
}

func TestEvaluateDisparateImpactBoundary(t *testing.T) {
	// 0.4 / 0.5 is exactly the four-fifths rule and the difference is exactly 0.10.
	e := mustEngine(t, nil)
	r, err := e.Evaluate(concat(
		outcomes("A", 1, 1, 1, 1, 1, 0, 0, 0, 0, 0),
		outcomes("B", 1, 1, 1, 1, 0, 0, 0, 0, 0, 0),
	))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, metricValue(t, r, MetricDisparateImpact), 1e-12)
	assert.False(t, r.Summary.BiasDetected, "violations: %+v", r.Violations)
}

// selections builds n records for group with the first selected favorable.
func selections(group string, selected, n int) []DecisionRecord {
	out := make([]DecisionRecord, n)
	for i := range out {
		p := 0
		if i < selected {
			p = 1
		}
		out[i] = NewRecord(group, p)
	}
	return out
}

func TestEvaluateDisparateImpactJustBelowBoundary(t *testing.T) {
	// 0.3199 / 0.4 = 0.799375 fails the four-fifths rule while the difference stays under 0.10.
	e := mustEngine(t, nil)
	r, err := e.Evaluate(concat(selections("A", 4000, 10000), selections("B", 3199, 10000)))
	require.NoError(t, err)
	assert.InDelta(t, 0.799375, metricValue(t, r, MetricDisparateImpact), 1e-12)
	assert.True(t, r.Summary.BiasDetected)
	require.Len(t, r.Violations, 1)
	v := r.Violations[0]
	assert.Equal(t, "disparate_impact", v.Metric)
	assert.Equal(t, SeverityMedium, v.Severity)
	assert.InDelta(t, 0.80, v.Threshold, 1e-12)
}

func TestEvaluateNoGroundTruth(t *testing.T) {
	e := mustEngine(t, nil)
	r, err := e.Evaluate(concat(outcomes("A", 1, 1, 1, 0), outcomes("B", 1, 1, 0, 0)))
	require.NoError(t, err)

	assert.InDelta(t, 0.25, metricValue(t, r, MetricDemographicParityDifference), 1e-12)
	assert.InDelta(t, 2.0/3.0, metricValue(t, r, MetricDisparateImpact), 1e-12)
	for _, name := range []string{"equal_opportunity_difference", "average_odds_difference", "predictive_parity_difference"} {
		assert.False(t, r.FairnessMetrics[name].IsKnown(), name)
		assert.Equal(t, ReasonGroundTruthUnavailable, r.UnavailableMetrics[name], name)
		assert.Equal(t, ReasonGroundTruthUnavailable, r.MetricDetails[name].Reason, name)
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded struct {
		FairnessMetrics map[string]*float64 `json:"fairness_metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.FairnessMetrics["equal_opportunity_difference"])
	assert.NotNil(t, decoded.FairnessMetrics["demographic_parity_difference"])

	assert.Contains(t, r.Recommendations[len(r.Recommendations)-1], "Ground-truth outcomes were not supplied")
}

func TestEvaluateUnknownPrivileged(t *testing.T) {
	e := mustEngine(t, func(o *Options) { o.PrivilegedGroup = "nobody" })
	_, err := e.Evaluate(oddsFixture())
	var target *UnknownGroupError
	assert.ErrorAs(t, err, &target)
}

func shuffledBatch() []DecisionRecord {
	var records []DecisionRecord
	for i := range 60 {
		group := []string{"north", "south", "east"}[i%3]
		rec := NewRecord(group, (i/3)%2).WithGroundTruth((i / 5) % 2).WithScore(float64(i%7) / 10)
		records = append(records, rec)
	}
	return records
}

func TestEvaluateOrderInvariance(t *testing.T) {
	e := mustEngine(t, nil)
	records := shuffledBatch()

	base, err := e.Evaluate(records)
	require.NoError(t, err)
	want, err := json.Marshal(base)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 11))
	for i := range 20 {
		shuffled := slices.Clone(records)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		r, err := e.Evaluate(shuffled)
		require.NoError(t, err)
		got, err := json.Marshal(r)
		require.NoError(t, err)
		if string(got) != string(want) {
			t.Fatalf("shuffle %d changed the report:\n%s", i, cmp.Diff(string(want), string(got)))
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	e := mustEngine(t, func(o *Options) { o.PrivilegedGroup = "north" })
	records := shuffledBatch()
	snapshot := slices.Clone(records)

	first, err := e.Evaluate(records)
	require.NoError(t, err)
	second, err := e.Evaluate(records)
	require.NoError(t, err)

	f1, err := first.Fingerprint()
	require.NoError(t, err)
	f2, err := second.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.True(t, strings.HasPrefix(f1, "sha256:"))
	assert.Equal(t, snapshot, records, "input must not be mutated")
}

func TestEvaluateLenient(t *testing.T) {
	records := concat(outcomes("A", 1, 0), []DecisionRecord{{GroupLabel: "B"}}, outcomes("B", 1, 0))

	strict := mustEngine(t, nil)
	_, err := strict.Evaluate(records)
	var invalid *InvalidRecordError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.Index)

	lenient := mustEngine(t, func(o *Options) { o.Mode = Lenient })
	r, err := lenient.Evaluate(records)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Summary.TotalRecords)
	assert.Equal(t, 1, r.Summary.SkippedRecords)
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"favorable label", func(o *Options) { o.FavorableLabel = 2 }},
		{"min records", func(o *Options) { o.MinRecords = 0 }},
		{"mode", func(o *Options) { o.Mode = ValidationMode(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := NewEngine(opts)
			assert.Error(t, err)
		})
	}

	_, err := NewEngine(Options{})
	assert.Error(t, err, "zero options must be rejected")

	e, err := NewEngine(Options{FavorableLabel: 1, MinRecords: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileName, e.Options().Thresholds.Name())
}

func TestEvaluateCustomThresholds(t *testing.T) {
	lax, err := NewThresholds("lax", map[MetricKind]Rule{
		MetricDisparateImpact: {Direction: AtLeast, Threshold: 0.5, Otherwise: SeverityLow},
	})
	require.NoError(t, err)

	e := mustEngine(t, func(o *Options) { o.Thresholds = lax })
	r, err := e.Evaluate(concat(outcomes("A", 1, 1, 1, 1), outcomes("B", 1, 1, 0, 0)))
	require.NoError(t, err)

	assert.False(t, r.Summary.BiasDetected, "0.5 passes an at_least 0.5 rule")
	assert.Equal(t, "lax", r.ThresholdProfile)

	r, err = e.Evaluate(concat(outcomes("A", 1, 1, 1, 1), outcomes("B", 1, 0, 0, 0)))
	require.NoError(t, err)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, SeverityLow, r.Violations[0].Severity)
	assert.Equal(t, 95.0, r.Summary.FairnessScore)
}

func TestEngineConcurrentUse(t *testing.T) {
	e := mustEngine(t, nil)
	records := shuffledBatch()
	want, err := e.Evaluate(records)
	require.NoError(t, err)
	wantFP, _ := want.Fingerprint()

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			r, err := e.Evaluate(records)
			if err != nil {
				errs <- err
				return
			}
			fp, _ := r.Fingerprint()
			if fp != wantFP {
				errs <- fmt.Errorf("fingerprint %s, want %s", fp, wantFP)
				return
			}
			errs <- nil
		}()
	}
	for range 8 {
		assert.NoError(t, <-errs)
	}
}

func BenchmarkEvaluate(b *testing.B) {
	records := make([]DecisionRecord, 0, 50000)
	for i := range 50000 {
		records = append(records, NewRecord(fmt.Sprintf("g%d", i%5), i%3%2).WithGroundTruth(i%2).WithScore(float64(i%100)))
	}
	e := mustEngine(b, nil)

	for b.Loop() {
		if _, err := e.Evaluate(records); err != nil {
			b.Fatal(err)
		}
	}
}

package fairness

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, set MetricSet, k MetricKind) float64 {
	t.Helper()
	v, ok := set.Get(k).Value.Get()
	require.Truef(t, ok, "%s not computable: %s", k, set.Get(k).Reason)
	return v
}

func TestComputeMetricsWithoutPrivileged(t *testing.T) {
	set, err := ComputeMetrics(mustStats(t, oddsFixture()), "")
	require.NoError(t, err)

	tests := []struct {
		kind MetricKind
		want float64
		pair GroupPair
	}{
		{MetricDemographicParityDifference, 0.25, GroupPair{"A", "B"}},
		{MetricDemographicParityRatio, 2.0 / 3.0, GroupPair{"B", "A"}},
		{MetricDisparateImpact, 2.0 / 3.0, GroupPair{"B", "A"}},
		{MetricEqualOpportunityDifference, 0.5, GroupPair{"A", "B"}},
		{MetricAverageOddsDifference, 0.25, GroupPair{"A", "B"}},
		{MetricPredictiveParityDifference, 2.0/3.0 - 0.5, GroupPair{"A", "B"}},
		{MetricFalsePositiveRateDifference, 0, GroupPair{"A", "B"}},
		{MetricFalseNegativeRateDifference, 0.5, GroupPair{"B", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, value(t, set, tt.kind), 1e-12)
			res := set.Get(tt.kind)
			require.NotNil(t, res.Pair)
			assert.Equal(t, tt.pair, *res.Pair)
		})
	}
}

func TestPrivilegedSymmetry(t *testing.T) {
	stats := mustStats(t, oddsFixture())
	fromA, err := ComputeMetrics(stats, "A")
	require.NoError(t, err)
	fromB, err := ComputeMetrics(stats, "B")
	require.NoError(t, err)

	for _, k := range AllMetricKinds() {
		if k == MetricTheilIndex {
			continue
		}
		a, b := value(t, fromA, k), value(t, fromB, k)
		if k.IsRatio() {
			assert.Equal(t, a, b, "%s must not depend on designation", k)
			continue
		}
		assert.InDelta(t, -a, b, 1e-12, "%s must flip sign", k)
	}

	assert.InDelta(t, 0.25, value(t, fromA, MetricAverageOddsDifference), 1e-12)
	assert.InDelta(t, -0.5, value(t, fromA, MetricFalseNegativeRateDifference), 1e-12)
}

func TestPrivilegedWorstGap(t *testing.T) {
	records := concat(
		outcomes("A", 1, 1, 1, 1, 0),
		outcomes("B", 1, 1, 1, 0, 0),
		outcomes("C", 1, 0, 0, 0, 0),
		outcomes("D", 1, 1, 1, 1, 1),
	)
	set, err := ComputeMetrics(mustStats(t, records), "A")
	require.NoError(t, err)

	// A is 0.8; C (0.2) lies further away than D (1.0).
	res := set.Get(MetricDemographicParityDifference)
	assert.InDelta(t, 0.6, value(t, set, MetricDemographicParityDifference), 1e-9)
	assert.Equal(t, GroupPair{"A", "C"}, *res.Pair)

	// Ratios stay min over max across all groups.
	assert.InDelta(t, 0.2, value(t, set, MetricDisparateImpact), 1e-12)
	assert.Equal(t, GroupPair{"C", "D"}, *set.Get(MetricDisparateImpact).Pair)
}

func TestPrivilegedTieBreaksOnLabel(t *testing.T) {
	records := concat(outcomes("M", 1, 0), outcomes("Z", 1, 1), outcomes("B", 0, 0))
	set, err := ComputeMetrics(mustStats(t, records), "M")
	require.NoError(t, err)
	assert.Equal(t, GroupPair{"M", "B"}, *set.Get(MetricDemographicParityDifference).Pair)
	assert.InDelta(t, 0.5, value(t, set, MetricDemographicParityDifference), 1e-12)
}

func TestUnknownPrivilegedGroup(t *testing.T) {
	_, err := ComputeMetrics(mustStats(t, oddsFixture()), "X")
	var target *UnknownGroupError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "X", target.Group)
}

func TestMetricsWithoutGroundTruth(t *testing.T) {
	set, err := ComputeMetrics(mustStats(t, concat(outcomes("A", 1, 1, 0, 0), outcomes("B", 1, 0, 0, 0))), "")
	require.NoError(t, err)

	assert.InDelta(t, 0.25, value(t, set, MetricDemographicParityDifference), 1e-12)
	assert.InDelta(t, 0.5, value(t, set, MetricDisparateImpact), 1e-12)
	for _, k := range AllMetricKinds() {
		if !k.RequiresGroundTruth() {
			continue
		}
		res := set.Get(k)
		assert.False(t, res.Value.IsKnown(), k.String())
		assert.Equal(t, ReasonGroundTruthUnavailable, res.Reason, k.String())
	}
}

func TestMetricsGroundTruthInOneGroup(t *testing.T) {
	records := concat(labeled("A", [2]int{1, 1}, [2]int{0, 0}), outcomes("B", 1, 0))
	set, err := ComputeMetrics(mustStats(t, records), "")
	require.NoError(t, err)
	assert.Equal(t, ReasonInsufficientGroups, set.Get(MetricEqualOpportunityDifference).Reason)
	assert.Equal(t, ReasonInsufficientGroups, set.Get(MetricAverageOddsDifference).Reason)
}

func TestRatioWithNoFavorableOutcomes(t *testing.T) {
	set, err := ComputeMetrics(mustStats(t, concat(outcomes("A", 0, 0), outcomes("B", 0, 0))), "")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoFavorableOutcomes, set.Get(MetricDisparateImpact).Reason)
	assert.Equal(t, ReasonNoFavorableOutcomes, set.Get(MetricDemographicParityRatio).Reason)
	assert.Equal(t, 0.0, value(t, set, MetricDemographicParityDifference))
	assert.Equal(t, ReasonZeroMeanBenefit, set.Get(MetricTheilIndex).Reason)
}

func TestMetricRanges(t *testing.T) {
	batches := [][]DecisionRecord{
		oddsFixture(),
		concat(outcomes("A", 1, 1), outcomes("B", 0, 0)),
		concat(labeled("A", [2]int{1, 0}, [2]int{1, 0}), labeled("B", [2]int{0, 1}, [2]int{0, 1}), outcomes("C", 1)),
	}
	for i, records := range batches {
		for _, privileged := range []string{"", "A", "B"} {
			set, err := ComputeMetrics(mustStats(t, records), privileged)
			require.NoError(t, err)
			for _, k := range AllMetricKinds() {
				v, ok := set.Get(k).Value.Get()
				if !ok || k == MetricTheilIndex {
					continue
				}
				if k.IsRatio() {
					assert.True(t, v >= 0 && v <= 1, "batch %d %s = %v", i, k, v)
				} else {
					assert.True(t, v >= -1 && v <= 1, "batch %d %s = %v", i, k, v)
				}
			}
		}
	}
}

func TestMetricKindNames(t *testing.T) {
	for _, k := range AllMetricKinds() {
		parsed, err := ParseMetricKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.NotEmpty(t, k.Title())
	}
	_, err := ParseMetricKind("accuracy")
	assert.Error(t, err)
}

func TestTheilIndex(t *testing.T) {
	tests := []struct {
		name    string
		records []DecisionRecord
		want    float64
		reason  string
	}{
		{
			name:    "indicator benefits",
			records: concat(outcomes("A", 1, 1, 0, 0), outcomes("B", 1, 1, 0, 0)),
			want:    math.Ln2,
		},
		{
			name: "continuous scores",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(1), NewRecord("A", 1).WithScore(2),
				NewRecord("B", 0).WithScore(3), NewRecord("B", 0).WithScore(4),
			},
			want: (0.4*math.Log(0.4) + 0.8*math.Log(0.8) + 1.2*math.Log(1.2) + 1.6*math.Log(1.6)) / 4,
		},
		{
			name: "equal scores",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(0.7), NewRecord("B", 0).WithScore(0.7),
			},
			want: 0,
		},
		{
			name: "zero score contributes nothing",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(0), NewRecord("B", 0).WithScore(2),
			},
			want: math.Ln2,
		},
		{
			name: "partial scores fall back to indicator",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(5), NewRecord("B", 0),
			},
			want: math.Ln2,
		},
		{
			name: "negative score",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(-1), NewRecord("B", 0).WithScore(2),
			},
			reason: ReasonNegativeBenefit,
		},
		{
			name: "equal scores near the float64 limit",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(1e308), NewRecord("A", 1).WithScore(1e308),
				NewRecord("B", 0).WithScore(1e308), NewRecord("B", 0).WithScore(1e308),
			},
			want: 0,
		},
		{
			name: "unequal scores near the float64 limit",
			records: []DecisionRecord{
				NewRecord("A", 1).WithScore(1e308), NewRecord("B", 0).WithScore(1.5e308),
			},
			want: (0.8*math.Log(0.8) + 1.2*math.Log(1.2)) / 2,
		},
		{
			name:    "no favorable outcomes",
			records: concat(outcomes("A", 0), outcomes("B", 0)),
			reason:  ReasonZeroMeanBenefit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TheilIndex(mustStats(t, tt.records))
			if tt.reason != "" {
				assert.False(t, res.Value.IsKnown())
				assert.Equal(t, tt.reason, res.Reason)
				return
			}
			v, ok := res.Value.Get()
			require.True(t, ok, res.Reason)
			assert.InDelta(t, tt.want, v, 1e-12)
			assert.Nil(t, res.Pair)
		})
	}
}

// bruteOddsPair compares every pair and keeps the first strict maximum.
func bruteOddsPair(groups []odds) (float64, GroupPair) {
	best, pair := -1.0, GroupPair{}
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			a, b := groups[i], groups[j]
			v := (math.Abs(a.tpr-b.tpr) + math.Abs(a.fpr-b.fpr)) / 2
			if v > best {
				best, pair = v, GroupPair{First: a.label, Second: b.label}
			}
		}
	}
	return best, pair
}

func TestWorstOddsPairMatchesPairwiseSearch(t *testing.T) {
	// Quarter steps keep every sum exact and make ties common.
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := 0; iter < 2000; iter++ {
		groups := make([]odds, 2+rng.IntN(11))
		for i := range groups {
			groups[i] = odds{
				label: fmt.Sprintf("g%02d", i),
				tpr:   float64(rng.IntN(5)) / 4,
				fpr:   float64(rng.IntN(5)) / 4,
			}
		}
		wantV, wantPair := bruteOddsPair(groups)
		gotV, gotPair := worstOddsPair(groups)
		require.Equalf(t, wantV, gotV, "groups %+v", groups)
		require.Equalf(t, wantPair, gotPair, "groups %+v", groups)
	}
}

func TestAverageOddsManyGroups(t *testing.T) {
	// Group 0: TPR 1, FPR 0. The last group: TPR 0, FPR 1. Everything else sits at 1/2.
	const n = 5000
	var records []DecisionRecord
	for i := 0; i < n; i++ {
		g := fmt.Sprintf("g%04d", i)
		switch i {
		case 0:
			records = append(records, labeled(g, [2]int{1, 1}, [2]int{0, 0})...)
		case n - 1:
			records = append(records, labeled(g, [2]int{0, 1}, [2]int{1, 0})...)
		default:
			records = append(records, labeled(g, [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0})...)
		}
	}
	set, err := ComputeMetrics(mustStats(t, records), "")
	require.NoError(t, err)
	r := set.Get(MetricAverageOddsDifference)
	v, ok := r.Value.Get()
	require.True(t, ok, r.Reason)
	assert.InDelta(t, 1.0, v, 1e-12)
	require.NotNil(t, r.Pair)
	assert.Equal(t, GroupPair{First: "g0000", Second: fmt.Sprintf("g%04d", n-1)}, *r.Pair)
}

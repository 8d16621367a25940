package fairness

import (
	"fmt"
	"math"
)

// MetricKind enumerates the core fairness metrics.
type MetricKind int

const (
	MetricDemographicParityDifference MetricKind = iota
	MetricDemographicParityRatio
	MetricDisparateImpact
	MetricEqualOpportunityDifference
	MetricAverageOddsDifference
	MetricPredictiveParityDifference
	MetricFalsePositiveRateDifference
	MetricFalseNegativeRateDifference
	MetricTheilIndex

	numMetricKinds
)

var metricNames = [numMetricKinds]string{
	MetricDemographicParityDifference: "demographic_parity_difference",
	MetricDemographicParityRatio:      "demographic_parity_ratio",
	MetricDisparateImpact:             "disparate_impact",
	MetricEqualOpportunityDifference:  "equal_opportunity_difference",
	MetricAverageOddsDifference:       "average_odds_difference",
	MetricPredictiveParityDifference:  "predictive_parity_difference",
	MetricFalsePositiveRateDifference: "false_positive_rate_difference",
	MetricFalseNegativeRateDifference: "false_negative_rate_difference",
	MetricTheilIndex:                  "theil_index",
}

var metricTitles = [numMetricKinds]string{
	MetricDemographicParityDifference: "Demographic parity difference",
	MetricDemographicParityRatio:      "Demographic parity ratio",
	MetricDisparateImpact:             "Disparate impact",
	MetricEqualOpportunityDifference:  "Equal opportunity difference",
	MetricAverageOddsDifference:       "Average odds difference",
	MetricPredictiveParityDifference:  "Predictive parity difference",
	MetricFalsePositiveRateDifference: "False positive rate difference",
	MetricFalseNegativeRateDifference: "False negative rate difference",
	MetricTheilIndex:                  "Theil index",
}

// AllMetricKinds returns every core metric in enumeration order.
func AllMetricKinds() []MetricKind {
	kinds := make([]MetricKind, numMetricKinds)
	for i := range kinds {
		kinds[i] = MetricKind(i)
	}
	return kinds
}

func (k MetricKind) valid() bool {
	return k >= 0 && k < numMetricKinds
}

// String returns the stable JSON name.
func (k MetricKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("MetricKind(%d)", int(k))
	}
	return metricNames[k]
}

// Title is the human-readable name used in rendered output.
func (k MetricKind) Title() string {
	if !k.valid() {
		return k.String()
	}
	return metricTitles[k]
}

// RequiresGroundTruth reports whether the metric needs outcome labels.
func (k MetricKind) RequiresGroundTruth() bool {
	switch k {
	case MetricEqualOpportunityDifference, MetricAverageOddsDifference, MetricPredictiveParityDifference,
		MetricFalsePositiveRateDifference, MetricFalseNegativeRateDifference:
		return true
	}
	return false
}

// IsRatio reports whether the metric is a min/max ratio.
func (k MetricKind) IsRatio() bool {
	return k == MetricDemographicParityRatio || k == MetricDisparateImpact
}

// ParseMetricKind resolves a JSON metric name.
func ParseMetricKind(name string) (MetricKind, error) {
	for i, n := range metricNames {
		if n == name {
			return MetricKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

func (k MetricKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid metric kind %d", int(k))
	}
	return []byte(metricNames[k]), nil
}

func (k *MetricKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMetricKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// GroupPair identifies the two groups a metric value was derived from.
// For differences the value is First minus Second, for ratios First over Second.
type GroupPair struct {
	First  string
	Second string
}

func (p GroupPair) String() string {
	return p.First + " vs " + p.Second
}

// MetricResult is either a known value or a not-computable marker with a reason.
type MetricResult struct {
	Value  Optional
	Reason string
	Pair   *GroupPair
}

// Computed builds a known result.
func Computed(v float64, pair *GroupPair) MetricResult {
	return MetricResult{Value: Known(v), Pair: pair}
}

// NotComputable builds an unknown result.
func NotComputable(reason string) MetricResult {
	return MetricResult{Value: Unknown(), Reason: reason}
}

// Groups returns the pair as a slice, or nil for a global metric.
func (r MetricResult) Groups() []string {
	if r.Pair == nil {
		return nil
	}
	return []string{r.Pair.First, r.Pair.Second}
}

// MetricSet holds one result per MetricKind.
type MetricSet struct {
	results [numMetricKinds]MetricResult
}

// Get returns the result for a kind.
func (s MetricSet) Get(k MetricKind) MetricResult {
	if !k.valid() {
		return NotComputable(ReasonNoRecords)
	}
	return s.results[k]
}

func (s *MetricSet) set(k MetricKind, r MetricResult) {
	s.results[k] = r
}

// ComputeMetrics derives the full metric set from group statistics.
// An empty privileged label selects the max-minus-min formulation.
func ComputeMetrics(stats GroupStatisticsSet, privileged string) (MetricSet, error) {
	if privileged != "" {
		privileged = normalizeLabel(privileged)
		if _, ok := stats.Get(privileged); !ok {
			return MetricSet{}, &UnknownGroupError{Group: privileged}
		}
	}

	c := metricComputer{stats: stats, privileged: privileged}
	var set MetricSet

	set.set(MetricDemographicParityDifference, c.difference(MetricDemographicParityDifference, selectionRate))
	parity := c.ratio()
	set.set(MetricDemographicParityRatio, parity)
	set.set(MetricDisparateImpact, parity)
	set.set(MetricEqualOpportunityDifference, c.difference(MetricEqualOpportunityDifference, truePositiveRate))
	set.set(MetricAverageOddsDifference, c.averageOdds())
	set.set(MetricPredictiveParityDifference, c.difference(MetricPredictiveParityDifference, precision))
	set.set(MetricFalsePositiveRateDifference, c.difference(MetricFalsePositiveRateDifference, falsePositiveRate))
	set.set(MetricFalseNegativeRateDifference, c.difference(MetricFalseNegativeRateDifference, falseNegativeRate))
	set.set(MetricTheilIndex, TheilIndex(stats))

	return set, nil
}

type rateFunc func(GroupStatistics) Optional

func selectionRate(g GroupStatistics) Optional     { return g.SelectionRate }
func truePositiveRate(g GroupStatistics) Optional  { return g.TruePositiveRate }
func falsePositiveRate(g GroupStatistics) Optional { return g.FalsePositiveRate }
func falseNegativeRate(g GroupStatistics) Optional { return g.FalseNegativeRate }
func precision(g GroupStatistics) Optional         { return g.Precision }

type labeledRate struct {
	label string
	rate  float64
}

type metricComputer struct {
	stats      GroupStatisticsSet
	privileged string
}

// known collects groups whose rate is computable, in label order.
func (c metricComputer) known(rate rateFunc) []labeledRate {
	var out []labeledRate
	for _, label := range c.stats.labels {
		if v, ok := rate(c.stats.groups[label]).Get(); ok {
			out = append(out, labeledRate{label: label, rate: v})
		}
	}
	return out
}

// extremes returns the first group holding the max and the first holding
// the min. The two are distinct whenever len(rates) >= 2.
func extremes(rates []labeledRate) (hi, lo labeledRate) {
	hi, lo = rates[0], rates[0]
	for _, r := range rates[1:] {
		if r.rate > hi.rate {
			hi = r
		}
		if r.rate < lo.rate {
			lo = r
		}
	}
	if hi.label == lo.label {
		lo = rates[1]
	}
	return hi, lo
}

func (c metricComputer) groundTruthGuard(k MetricKind) (MetricResult, bool) {
	if k.RequiresGroundTruth() && !c.stats.HasGroundTruth() {
		return NotComputable(ReasonGroundTruthUnavailable), true
	}
	return MetricResult{}, false
}

func (c metricComputer) difference(k MetricKind, rate rateFunc) MetricResult {
	if r, stop := c.groundTruthGuard(k); stop {
		return r
	}
	rates := c.known(rate)
	if len(rates) < 2 {
		return NotComputable(ReasonInsufficientGroups)
	}

	if c.privileged == "" {
		hi, lo := extremes(rates)
		return Computed(hi.rate-lo.rate, &GroupPair{First: hi.label, Second: lo.label})
	}

	p, ok := rate(c.stats.groups[c.privileged]).Get()
	if !ok {
		return NotComputable(ReasonInsufficientGroups)
	}
	var worst *labeledRate
	for i := range rates {
		r := rates[i]
		if r.label == c.privileged {
			continue
		}
		if worst == nil || math.Abs(p-r.rate) > math.Abs(p-worst.rate) {
			worst = &rates[i]
		}
	}
	return Computed(p-worst.rate, &GroupPair{First: c.privileged, Second: worst.label})
}

// ratio is shared by demographic parity ratio and disparate impact.
func (c metricComputer) ratio() MetricResult {
	rates := c.known(selectionRate)
	if len(rates) < 2 {
		return NotComputable(ReasonInsufficientGroups)
	}
	hi, lo := extremes(rates)
	if hi.rate == 0 {
		return NotComputable(ReasonNoFavorableOutcomes)
	}
	return Computed(lo.rate/hi.rate, &GroupPair{First: lo.label, Second: hi.label})
}

type odds struct {
	label string
	tpr   float64
	fpr   float64
}

// worstOddsPair finds the pair with the largest mean absolute TPR and FPR gap
// in linear time. Since |a|+|b| = max(|a+b|, |a-b|), the worst pair spans the
// extremes of either tpr+fpr or tpr-fpr. Ties go to the pair that comes first
// in label order.
func worstOddsPair(groups []odds) (float64, GroupPair) {
	projections := []func(odds) float64{
		func(o odds) float64 { return o.tpr + o.fpr },
		func(o odds) float64 { return o.tpr - o.fpr },
	}

	best, bestSpan := [2]int{0, 1}, 0.0
	for _, project := range projections {
		lo, hi := 0, 0
		for i := range groups {
			v := project(groups[i])
			if v < project(groups[lo]) {
				lo = i
			}
			if v > project(groups[hi]) {
				hi = i
			}
		}
		span := project(groups[hi]) - project(groups[lo])
		if span == 0 {
			continue
		}
		pair := [2]int{min(lo, hi), max(lo, hi)}
		if span > bestSpan || (span == bestSpan && (pair[0] < best[0] || pair[0] == best[0] && pair[1] < best[1])) {
			best, bestSpan = pair, span
		}
	}

	a, b := groups[best[0]], groups[best[1]]
	return (math.Abs(a.tpr-b.tpr) + math.Abs(a.fpr-b.fpr)) / 2, GroupPair{First: a.label, Second: b.label}
}

func (c metricComputer) averageOdds() MetricResult {
	if r, stop := c.groundTruthGuard(MetricAverageOddsDifference); stop {
		return r
	}
	var groups []odds
	for _, label := range c.stats.labels {
		g := c.stats.groups[label]
		tpr, okT := g.TruePositiveRate.Get()
		fpr, okF := g.FalsePositiveRate.Get()
		if okT && okF {
			groups = append(groups, odds{label: label, tpr: tpr, fpr: fpr})
		}
	}
	if len(groups) < 2 {
		return NotComputable(ReasonInsufficientGroups)
	}

	if c.privileged == "" {
		value, pair := worstOddsPair(groups)
		return Computed(value, &pair)
	}

	var p *odds
	for i := range groups {
		if groups[i].label == c.privileged {
			p = &groups[i]
		}
	}
	if p == nil {
		return NotComputable(ReasonInsufficientGroups)
	}
	found := false
	var value float64
	var other string
	for _, u := range groups {
		if u.label == c.privileged {
			continue
		}
		v := ((p.tpr - u.tpr) + (p.fpr - u.fpr)) / 2
		if !found || math.Abs(v) > math.Abs(value) {
			found, value, other = true, v, u.label
		}
	}
	return Computed(value, &GroupPair{First: c.privileged, Second: other})
}

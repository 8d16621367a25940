package fairness

import (
	"cmp"
	"math"
	"slices"
)

// Violation is a metric value that failed its rule.
type Violation struct {
	Metric         string   `json:"metric"`
	Comparison     string   `json:"comparison"`
	Value          float64  `json:"value"`
	Threshold      float64  `json:"threshold"`
	Severity       Severity `json:"severity"`
	AffectedGroups []string `json:"affected_groups"`

	kind   MetricKind
	custom bool
}

// Kind returns the core metric kind, or false for a custom metric.
func (v Violation) Kind() (MetricKind, bool) {
	return v.kind, !v.custom
}

// Detection is the outcome of one detector pass.
type Detection struct {
	Violations   []Violation
	BiasDetected bool
	// Unavailable lists every metric that could not be computed.
	Unavailable []MetricNotComputableWarning
}

// BiasDetector compares metrics against an injected threshold profile.
type BiasDetector struct {
	thresholds Thresholds
}

// NewBiasDetector binds a detector to a profile.
func NewBiasDetector(thresholds Thresholds) *BiasDetector {
	return &BiasDetector{thresholds: thresholds}
}

// Thresholds returns the profile the detector applies.
func (d *BiasDetector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect evaluates core and custom results. Not-computable metrics are
// skipped and reported as unavailable.
func (d *BiasDetector) Detect(set MetricSet, custom []CustomResult) Detection {
	det := Detection{Violations: []Violation{}}

	for _, k := range AllMetricKinds() {
		res := set.Get(k)
		v, ok := finite(res.Value)
		if !ok {
			det.Unavailable = append(det.Unavailable, MetricNotComputableWarning{Metric: k.String(), Reason: reasonOf(res)})
			continue
		}
		rule, ok := d.thresholds.Rule(k)
		if !ok {
			continue
		}
		if sev, failed := rule.Classify(v); failed {
			det.Violations = append(det.Violations, newViolation(k.String(), res, v, rule, sev, k, false))
		}
	}

	for _, c := range sortedCustom(custom) {
		v, ok := finite(c.Result.Value)
		if !ok {
			det.Unavailable = append(det.Unavailable, MetricNotComputableWarning{Metric: c.Name, Reason: reasonOf(c.Result)})
			continue
		}
		if c.Rule == nil {
			continue
		}
		if sev, failed := c.Rule.Classify(v); failed {
			det.Violations = append(det.Violations, newViolation(c.Name, c.Result, v, *c.Rule, sev, 0, true))
		}
	}

	slices.SortStableFunc(det.Violations, compareViolations)
	det.BiasDetected = len(det.Violations) > 0
	return det
}

func finite(o Optional) (float64, bool) {
	v, ok := o.Get()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func reasonOf(r MetricResult) string {
	if r.Value.IsKnown() {
		return ReasonNotFinite
	}
	if r.Reason == "" {
		return ReasonUnspecified
	}
	return r.Reason
}

func sortedCustom(custom []CustomResult) []CustomResult {
	out := slices.Clone(custom)
	slices.SortStableFunc(out, func(a, b CustomResult) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func newViolation(name string, res MetricResult, v float64, rule Rule, sev Severity, k MetricKind, custom bool) Violation {
	comparison := "global"
	groups := []string{}
	if res.Pair != nil {
		comparison = res.Pair.String()
		groups = res.Groups()
	}
	return Violation{
		Metric:         name,
		Comparison:     comparison,
		Value:          v,
		Threshold:      rule.Threshold,
		Severity:       sev,
		AffectedGroups: groups,
		kind:           k,
		custom:         custom,
	}
}

// compareViolations orders by severity descending, then core metrics in
// enumeration order, then custom metrics by name.
func compareViolations(a, b Violation) int {
	if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
		return c
	}
	if a.custom != b.custom {
		if a.custom {
			return 1
		}
		return -1
	}
	if !a.custom {
		return cmp.Compare(a.kind, b.kind)
	}
	return cmp.Compare(a.Metric, b.Metric)
}

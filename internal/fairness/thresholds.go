package fairness

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// tolerance absorbs float artefacts in threshold and band comparisons.
const tolerance = 1e-9

// Severity grades a violation for triage. The zero value is not a severity.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// ParseSeverity accepts the lower-case severity names.
func ParseSeverity(name string) (Severity, error) {
	for s := SeverityLow; s <= SeverityCritical; s++ {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Direction says which side of the threshold passes.
type Direction int

const (
	// AtMost passes when |value| <= threshold. Used for differences.
	AtMost Direction = iota
	// AtLeast passes when value >= threshold. Used for ratios.
	AtLeast
)

func (d Direction) String() string {
	if d == AtLeast {
		return "at_least"
	}
	return "at_most"
}

// ParseDirection accepts "at_most" or "at_least".
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(name) {
	case "at_most":
		return AtMost, nil
	case "at_least":
		return AtLeast, nil
	}
	return 0, fmt.Errorf("unknown direction %q", name)
}

// Band maps a violation magnitude to a severity. For AtMost rules a band
// matches when |value| >= Bound, for AtLeast rules when value < Bound.
type Band struct {
	Bound    float64
	Severity Severity
}

// Rule is the pass criterion and severity table for one metric.
type Rule struct {
	Direction Direction
	Threshold float64
	// Bands are evaluated in order, first match wins.
	Bands []Band
	// Otherwise is the severity of a failing value no band matched.
	Otherwise Severity
}

// Validate checks the rule for internal consistency.
func (r Rule) Validate() error {
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return errors.New("threshold must be a finite number")
	}
	if r.Direction != AtMost && r.Direction != AtLeast {
		return fmt.Errorf("invalid direction %d", int(r.Direction))
	}
	if !r.Otherwise.valid() {
		return errors.New("fallback severity is required")
	}
	for i, b := range r.Bands {
		if math.IsNaN(b.Bound) || math.IsInf(b.Bound, 0) {
			return fmt.Errorf("band %d: bound must be a finite number", i)
		}
		if !b.Severity.valid() {
			return fmt.Errorf("band %d: invalid severity", i)
		}
		if r.Direction == AtMost && b.Bound < r.Threshold {
			return fmt.Errorf("band %d: bound %g is below threshold %g", i, b.Bound, r.Threshold)
		}
		if r.Direction == AtLeast && b.Bound > r.Threshold {
			return fmt.Errorf("band %d: bound %g is above threshold %g", i, b.Bound, r.Threshold)
		}
	}
	return nil
}

// Classify returns the severity of v, or false when v passes.
func (r Rule) Classify(v float64) (Severity, bool) {
	switch r.Direction {
	case AtLeast:
		if v >= r.Threshold-tolerance {
			return 0, false
		}
		for _, b := range r.Bands {
			if v < b.Bound-tolerance {
				return b.Severity, true
			}
		}
	default:
		m := math.Abs(v)
		if m <= r.Threshold+tolerance {
			return 0, false
		}
		for _, b := range r.Bands {
			if m >= b.Bound-tolerance {
				return b.Severity, true
			}
		}
	}
	return r.Otherwise, true
}

func (r Rule) clone() Rule {
	r.Bands = slices.Clone(r.Bands)
	return r
}

// Thresholds is an immutable, named set of rules keyed by metric kind.
// Metrics without a rule are informational.
type Thresholds struct {
	name  string
	rules map[MetricKind]Rule
}

// NewThresholds validates and copies rules into a new profile.
func NewThresholds(name string, rules map[MetricKind]Rule) (Thresholds, error) {
	if strings.TrimSpace(name) == "" {
		return Thresholds{}, errors.New("threshold profile name is required")
	}
	copied := make(map[MetricKind]Rule, len(rules))
	for k, r := range rules {
		if !k.valid() {
			return Thresholds{}, fmt.Errorf("invalid metric kind %d", int(k))
		}
		if err := r.Validate(); err != nil {
			return Thresholds{}, fmt.Errorf("rule for %s: %w", k, err)
		}
		copied[k] = r.clone()
	}
	return Thresholds{name: name, rules: copied}, nil
}

// DefaultProfileName names the built-in profile.
const DefaultProfileName = "default"

// DefaultDifferenceRule applies to the parity and odds differences.
func DefaultDifferenceRule() Rule {
	return Rule{
		Direction: AtMost,
		Threshold: 0.10,
		Bands: []Band{
			{Bound: 0.30, Severity: SeverityCritical},
			{Bound: 0.20, Severity: SeverityHigh},
		},
		Otherwise: SeverityMedium,
	}
}

// DefaultDisparateImpactRule is the 80% rule.
func DefaultDisparateImpactRule() Rule {
	return Rule{
		Direction: AtLeast,
		Threshold: 0.80,
		Bands: []Band{
			{Bound: 0.50, Severity: SeverityCritical},
			{Bound: 0.70, Severity: SeverityHigh},
		},
		Otherwise: SeverityMedium,
	}
}

// DefaultThresholds returns a fresh copy of the built-in profile.
func DefaultThresholds() Thresholds {
	t, err := NewThresholds(DefaultProfileName, map[MetricKind]Rule{
		MetricDemographicParityDifference: DefaultDifferenceRule(),
		MetricEqualOpportunityDifference:  DefaultDifferenceRule(),
		MetricAverageOddsDifference:       DefaultDifferenceRule(),
		MetricPredictiveParityDifference:  DefaultDifferenceRule(),
		MetricDisparateImpact:             DefaultDisparateImpactRule(),
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Name identifies the profile in reports.
func (t Thresholds) Name() string {
	return t.name
}

// IsZero reports whether t was never built by NewThresholds.
func (t Thresholds) IsZero() bool {
	return t.name == "" && t.rules == nil
}

// Rule returns the rule for a metric kind.
func (t Thresholds) Rule(k MetricKind) (Rule, bool) {
	r, ok := t.rules[k]
	if !ok {
		return Rule{}, false
	}
	return r.clone(), true
}

// Kinds returns the metrics that carry a rule, in enumeration order.
func (t Thresholds) Kinds() []MetricKind {
	var kinds []MetricKind
	for _, k := range AllMetricKinds() {
		if _, ok := t.rules[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

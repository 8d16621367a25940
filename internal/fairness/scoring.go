package fairness

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

const maxScore = 100.0

// GradeBand assigns Grade to scores of at least Min.
type GradeBand struct {
	Min   float64
	Grade string
}

// ScoringPolicy turns violations into a score and a letter grade.
type ScoringPolicy struct {
	penalties map[Severity]float64
	bands     []GradeBand
	floor     string
}

// Score is the aggregate outcome.
type Score struct {
	Value float64
	Grade string
}

// DefaultScoringPolicy deducts 30/20/10/5 per critical/high/medium/low
// violation and grades A+ through F.
func DefaultScoringPolicy() ScoringPolicy {
	p, err := NewScoringPolicy(
		map[Severity]float64{
			SeverityCritical: 30,
			SeverityHigh:     20,
			SeverityMedium:   10,
			SeverityLow:      5,
		},
		[]GradeBand{{Min: 90, Grade: "A+"}, {Min: 80, Grade: "A"}, {Min: 70, Grade: "B"}, {Min: 60, Grade: "C"}},
		"F",
	)
	if err != nil {
		panic(err)
	}
	return p
}

// NewScoringPolicy validates and copies its inputs. Bands may be given in
// any order; floor is the grade below the lowest band.
func NewScoringPolicy(penalties map[Severity]float64, bands []GradeBand, floor string) (ScoringPolicy, error) {
	for s, p := range penalties {
		if !s.valid() {
			return ScoringPolicy{}, fmt.Errorf("invalid severity %d", int(s))
		}
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return ScoringPolicy{}, fmt.Errorf("penalty for %s must be a non-negative number", s)
		}
	}
	if floor == "" {
		return ScoringPolicy{}, errors.New("floor grade is required")
	}
	sorted := slices.Clone(bands)
	for _, b := range sorted {
		if b.Grade == "" {
			return ScoringPolicy{}, errors.New("grade band requires a grade")
		}
	}
	slices.SortStableFunc(sorted, func(a, b GradeBand) int { return cmp.Compare(b.Min, a.Min) })
	return ScoringPolicy{penalties: maps.Clone(penalties), bands: sorted, floor: floor}, nil
}

// IsZero reports whether p was never built by NewScoringPolicy.
func (p ScoringPolicy) IsZero() bool {
	return p.floor == ""
}

// Penalty returns the deduction for one violation of severity s.
func (p ScoringPolicy) Penalty(s Severity) float64 {
	return p.penalties[s]
}

// Score depends only on the multiset of violation severities.
func (p ScoringPolicy) Score(violations []Violation) Score {
	var counts [SeverityCritical + 1]int
	for _, v := range violations {
		if v.Severity.valid() {
			counts[v.Severity]++
		}
	}
	score := maxScore
	for s := SeverityLow; s <= SeverityCritical; s++ {
		score -= float64(counts[s]) * p.penalties[s]
	}
	score = math.Max(0, math.Min(maxScore, score))
	return Score{Value: score, Grade: p.Grade(score)}
}

// Grade maps a score to a letter.
func (p ScoringPolicy) Grade(score float64) string {
	for _, b := range p.bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return p.floor
}

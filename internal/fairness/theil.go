package fairness

import (
	"math"
	"slices"
)

// TheilIndex measures inequality of individual benefits. The benefit is the
// continuous score when every record carries one, otherwise the favorable
// outcome indicator. Benefits are sorted before summation so the result is
// identical for any ordering of the input.
func TheilIndex(stats GroupStatisticsSet) MetricResult {
	n := stats.Total()
	if n == 0 {
		return NotComputable(ReasonNoRecords)
	}

	var benefits []float64
	if len(stats.scores) == n {
		benefits = slices.Clone(stats.scores)
		slices.Sort(benefits)
		if benefits[0] < 0 {
			return NotComputable(ReasonNegativeBenefit)
		}
	} else {
		selected := stats.Selected()
		benefits = make([]float64, n)
		for i := n - selected; i < n; i++ {
			benefits[i] = 1
		}
	}

	return theil(benefits)
}

// theil expects sorted, non-negative benefits.
func theil(benefits []float64) MetricResult {
	n := float64(len(benefits))
	// Running mean; a plain sum overflows for scores near the float64 limit.
	var mu float64
	for i, b := range benefits {
		mu += (b - mu) / float64(i+1)
	}
	if math.IsInf(mu, 0) || math.IsNaN(mu) {
		return NotComputable(ReasonNotFinite)
	}
	if mu == 0 {
		return NotComputable(ReasonZeroMeanBenefit)
	}

	var acc float64
	for _, b := range benefits {
		if b == 0 {
			continue
		}
		x := b / mu
		acc += x * math.Log(x)
	}
	v := acc / n
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return NotComputable(ReasonNotFinite)
	}
	// Rounding can push a perfectly equal distribution a hair below zero.
	if v < 0 && v > -tolerance {
		v = 0
	}
	return Computed(v, nil)
}

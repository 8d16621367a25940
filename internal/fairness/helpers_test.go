package fairness

import "testing"

// outcomes builds records for one group from predicted labels.
func outcomes(group string, predicted ...int) []DecisionRecord {
	out := make([]DecisionRecord, 0, len(predicted))
	for _, p := range predicted {
		out = append(out, NewRecord(group, p))
	}
	return out
}

// labeled builds records for one group from (predicted, actual) pairs.
func labeled(group string, pairs ...[2]int) []DecisionRecord {
	out := make([]DecisionRecord, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, NewRecord(group, p[0]).WithGroundTruth(p[1]))
	}
	return out
}

func concat(batches ...[]DecisionRecord) []DecisionRecord {
	var out []DecisionRecord
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func mustStats(t testing.TB, records []DecisionRecord) GroupStatisticsSet {
	t.Helper()
	stats, err := ComputeGroupStatistics(records, StatisticsOptions{FavorableLabel: 1, MinRecords: 1})
	if err != nil {
		t.Fatalf("ComputeGroupStatistics: %v", err)
	}
	return stats
}

func mustEngine(t testing.TB, mutate func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.MinRecords = 1
	if mutate != nil {
		mutate(&opts)
	}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// oddsFixture has A: TPR 1, FPR 0.5, precision 2/3, selection 3/4 and
// B: TPR 0.5, FPR 0.5, precision 1/2, selection 1/2.
func oddsFixture() []DecisionRecord {
	return concat(
		labeled("A", [2]int{1, 1}, [2]int{1, 1}, [2]int{1, 0}, [2]int{0, 0}),
		labeled("B", [2]int{1, 1}, [2]int{0, 1}, [2]int{1, 0}, [2]int{0, 0}),
	)
}

package fairness

import (
	"encoding/json"
	"maps"
	"slices"
)

// DefaultMinRecords is the smallest batch the calculator accepts.
const DefaultMinRecords = 10

// ConfusionMatrix counts predicted against actual outcomes relative to the
// favorable label.
type ConfusionMatrix struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

// GroupStatistics holds the per-group reduction of a batch.
type GroupStatistics struct {
	Group         string
	Count         int
	SelectedCount int
	SelectionRate Optional

	// Confusion is nil when no record of the group carries ground truth,
	// in which case the rates below are all Unknown.
	Confusion         *ConfusionMatrix
	TruePositiveRate  Optional
	FalsePositiveRate Optional
	FalseNegativeRate Optional
	Precision         Optional
}

// HasGroundTruth reports whether any record of the group carried ground truth.
func (g GroupStatistics) HasGroundTruth() bool {
	return g.Confusion != nil
}

type groupStatisticsJSON struct {
	Count             int       `json:"count"`
	Selected          int       `json:"selected"`
	SelectionRate     Optional  `json:"selection_rate"`
	TruePositive      *int      `json:"true_positive,omitempty"`
	FalsePositive     *int      `json:"false_positive,omitempty"`
	TrueNegative      *int      `json:"true_negative,omitempty"`
	FalseNegative     *int      `json:"false_negative,omitempty"`
	TruePositiveRate  *Optional `json:"true_positive_rate,omitempty"`
	FalsePositiveRate *Optional `json:"false_positive_rate,omitempty"`
	FalseNegativeRate *Optional `json:"false_negative_rate,omitempty"`
	Precision         *Optional `json:"precision,omitempty"`
}

// MarshalJSON omits confusion fields for groups without ground truth and
// renders a not-computable rate as null.
func (g GroupStatistics) MarshalJSON() ([]byte, error) {
	out := groupStatisticsJSON{
		Count:         g.Count,
		Selected:      g.SelectedCount,
		SelectionRate: g.SelectionRate,
	}
	if g.Confusion != nil {
		cm := *g.Confusion
		tpr, fpr, fnr, prec := g.TruePositiveRate, g.FalsePositiveRate, g.FalseNegativeRate, g.Precision
		out.TruePositive = &cm.TruePositive
		out.FalsePositive = &cm.FalsePositive
		out.TrueNegative = &cm.TrueNegative
		out.FalseNegative = &cm.FalseNegative
		out.TruePositiveRate = &tpr
		out.FalsePositiveRate = &fpr
		out.FalseNegativeRate = &fnr
		out.Precision = &prec
	}
	return json.Marshal(out)
}

func (g *GroupStatistics) UnmarshalJSON(data []byte) error {
	var in groupStatisticsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = GroupStatistics{
		Count:             in.Count,
		SelectedCount:     in.Selected,
		SelectionRate:     in.SelectionRate,
		TruePositiveRate:  Unknown(),
		FalsePositiveRate: Unknown(),
		FalseNegativeRate: Unknown(),
		Precision:         Unknown(),
	}
	if in.TruePositive == nil {
		return nil
	}
	g.Confusion = &ConfusionMatrix{TruePositive: *in.TruePositive}
	for dst, src := range map[*int]*int{
		&g.Confusion.FalsePositive: in.FalsePositive,
		&g.Confusion.TrueNegative:  in.TrueNegative,
		&g.Confusion.FalseNegative: in.FalseNegative,
	} {
		if src != nil {
			*dst = *src
		}
	}
	for dst, src := range map[*Optional]*Optional{
		&g.TruePositiveRate:  in.TruePositiveRate,
		&g.FalsePositiveRate: in.FalsePositiveRate,
		&g.FalseNegativeRate: in.FalseNegativeRate,
		&g.Precision:         in.Precision,
	} {
		if src != nil {
			*dst = *src
		}
	}
	return nil
}

// GroupStatisticsSet is the result of one calculator pass.
type GroupStatisticsSet struct {
	groups      map[string]GroupStatistics
	labels      []string
	total       int
	skipped     int
	groundTruth bool

	// scores holds every continuous score seen, in input order.
	scores []float64
}

// Labels returns the group labels in sorted order.
func (s GroupStatisticsSet) Labels() []string {
	return slices.Clone(s.labels)
}

// Get returns the statistics for one group.
func (s GroupStatisticsSet) Get(label string) (GroupStatistics, bool) {
	g, ok := s.groups[label]
	return g, ok
}

// Len is the number of distinct groups.
func (s GroupStatisticsSet) Len() int {
	return len(s.labels)
}

// Total is the number of records that were analyzed.
func (s GroupStatisticsSet) Total() int {
	return s.total
}

// Skipped is the number of invalid records dropped in lenient mode.
func (s GroupStatisticsSet) Skipped() int {
	return s.skipped
}

// HasGroundTruth reports whether any analyzed record carried ground truth.
func (s GroupStatisticsSet) HasGroundTruth() bool {
	return s.groundTruth
}

// Selected is the number of favorable predictions across all groups.
func (s GroupStatisticsSet) Selected() int {
	n := 0
	for _, g := range s.groups {
		n += g.SelectedCount
	}
	return n
}

// Map returns a copy of the per-group statistics.
func (s GroupStatisticsSet) Map() map[string]GroupStatistics {
	return maps.Clone(s.groups)
}

// StatisticsOptions configures the calculator.
type StatisticsOptions struct {
	FavorableLabel int
	MinRecords     int
	Mode           ValidationMode
}

type groupAccumulator struct {
	count    int
	selected int
	cm       *ConfusionMatrix
}

// ComputeGroupStatistics reduces records into per-group statistics in a
// single pass. The input slice is never modified.
func ComputeGroupStatistics(records []DecisionRecord, opts StatisticsOptions) (GroupStatisticsSet, error) {
	minRecords := opts.MinRecords
	if minRecords <= 0 {
		minRecords = DefaultMinRecords
	}

	acc := make(map[string]*groupAccumulator)
	total, skipped := 0, 0
	groundTruth := false
	var scores []float64

	for i, rec := range records {
		label, err := validate(i, rec)
		if err != nil {
			if opts.Mode == Lenient {
				skipped++
				continue
			}
			return GroupStatisticsSet{}, err
		}

		a, ok := acc[label]
		if !ok {
			a = &groupAccumulator{}
			acc[label] = a
		}
		total++
		a.count++

		if rec.ContinuousScore != nil {
			scores = append(scores, *rec.ContinuousScore)
		}

		predictedFavorable := *rec.PredictedLabel == opts.FavorableLabel
		if predictedFavorable {
			a.selected++
		}

		if rec.GroundTruthLabel == nil {
			continue
		}
		groundTruth = true
		if a.cm == nil {
			a.cm = &ConfusionMatrix{}
		}
		actualFavorable := *rec.GroundTruthLabel == opts.FavorableLabel
		switch {
		case predictedFavorable && actualFavorable:
			a.cm.TruePositive++
		case predictedFavorable && !actualFavorable:
			a.cm.FalsePositive++
		case !predictedFavorable && actualFavorable:
			a.cm.FalseNegative++
		default:
			a.cm.TrueNegative++
		}
	}

	if total < minRecords {
		return GroupStatisticsSet{}, &InsufficientDataError{Count: total, Minimum: minRecords}
	}

	labels := slices.Sorted(maps.Keys(acc))
	if len(labels) < 2 {
		return GroupStatisticsSet{}, &SingleGroupError{Groups: labels}
	}

	groups := make(map[string]GroupStatistics, len(acc))
	for _, label := range labels {
		groups[label] = finalizeGroup(label, acc[label])
	}

	return GroupStatisticsSet{
		groups:      groups,
		labels:      labels,
		total:       total,
		skipped:     skipped,
		groundTruth: groundTruth,
		scores:      scores,
	}, nil
}

func finalizeGroup(label string, a *groupAccumulator) GroupStatistics {
	g := GroupStatistics{
		Group:             label,
		Count:             a.count,
		SelectedCount:     a.selected,
		SelectionRate:     ratio(a.selected, a.count),
		TruePositiveRate:  Unknown(),
		FalsePositiveRate: Unknown(),
		FalseNegativeRate: Unknown(),
		Precision:         Unknown(),
	}
	if a.cm == nil {
		return g
	}
	cm := *a.cm
	g.Confusion = &cm
	g.TruePositiveRate = ratio(cm.TruePositive, cm.TruePositive+cm.FalseNegative)
	g.FalsePositiveRate = ratio(cm.FalsePositive, cm.FalsePositive+cm.TrueNegative)
	g.FalseNegativeRate = ratio(cm.FalseNegative, cm.TruePositive+cm.FalseNegative)
	g.Precision = ratio(cm.TruePositive, cm.TruePositive+cm.FalsePositive)
	return g
}

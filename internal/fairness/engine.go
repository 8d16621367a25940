package fairness

import (
	"errors"
	"fmt"
)

// Options configures an Engine. Start from DefaultOptions; the zero value
// is rejected because MinRecords must be positive.
type Options struct {
	FavorableLabel  int
	PrivilegedGroup string
	MinRecords      int
	Mode            ValidationMode
	// Thresholds defaults to DefaultThresholds when zero.
	Thresholds Thresholds
	// Registry is optional; it is copied when the engine is built.
	Registry *Registry
	// Scoring defaults to DefaultScoringPolicy when zero.
	Scoring ScoringPolicy
}

// DefaultOptions favors label 1 and requires ten records.
func DefaultOptions() Options {
	return Options{
		FavorableLabel: 1,
		MinRecords:     DefaultMinRecords,
		Mode:           Strict,
		Thresholds:     DefaultThresholds(),
		Scoring:        DefaultScoringPolicy(),
	}
}

// Engine runs the full evaluation pipeline. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	opts     Options
	detector *BiasDetector
	registry *Registry
	advisor  RecommendationGenerator
}

// NewEngine validates opts.
func NewEngine(opts Options) (*Engine, error) {
	if !isBinary(opts.FavorableLabel) {
		return nil, fmt.Errorf("favorable label must be 0 or 1, got %d", opts.FavorableLabel)
	}
	if opts.MinRecords < 1 {
		return nil, errors.New("minimum record count must be at least 1")
	}
	if opts.Mode != Strict && opts.Mode != Lenient {
		return nil, fmt.Errorf("invalid validation mode %d", int(opts.Mode))
	}
	if opts.Thresholds.IsZero() {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.Scoring.IsZero() {
		opts.Scoring = DefaultScoringPolicy()
	}
	if opts.PrivilegedGroup != "" {
		opts.PrivilegedGroup = normalizeLabel(opts.PrivilegedGroup)
	}
	registry := opts.Registry.snapshot()
	opts.Registry = nil

	return &Engine{
		opts:     opts,
		detector: NewBiasDetector(opts.Thresholds),
		registry: registry,
		advisor:  NewRecommendationGenerator(opts.Thresholds.Name()),
	}, nil
}

// Options returns the effective configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Evaluate runs records through statistics, metrics, detection, scoring
// and recommendations. No partial report is returned on error.
func (e *Engine) Evaluate(records []DecisionRecord) (FairnessReport, error) {
	stats, err := ComputeGroupStatistics(records, StatisticsOptions{
		FavorableLabel: e.opts.FavorableLabel,
		MinRecords:     e.opts.MinRecords,
		Mode:           e.opts.Mode,
	})
	if err != nil {
		return FairnessReport{}, err
	}

	metrics, err := ComputeMetrics(stats, e.opts.PrivilegedGroup)
	if err != nil {
		return FairnessReport{}, err
	}

	custom := e.registry.Evaluate(stats)
	det := e.detector.Detect(metrics, custom)

	return AssembleReport(ReportParts{
		Stats:           stats,
		Metrics:         metrics,
		Custom:          custom,
		Detection:       det,
		Score:           e.opts.Scoring.Score(det.Violations),
		Recommendations: e.advisor.Generate(det),
		Profile:         e.opts.Thresholds.Name(),
	}), nil
}

package fairness

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// CustomMetric is a user-defined metric computed from group statistics.
type CustomMetric interface {
	Compute(stats GroupStatisticsSet) MetricResult
}

// CustomMetricFunc adapts a function to CustomMetric.
type CustomMetricFunc func(stats GroupStatisticsSet) MetricResult

func (f CustomMetricFunc) Compute(stats GroupStatisticsSet) MetricResult {
	return f(stats)
}

// CustomResult is the outcome of one custom metric.
type CustomResult struct {
	Name   string
	Result MetricResult
	Rule   *Rule
}

var (
	ErrEmptyMetricName     = errors.New("custom metric name is required")
	ErrDuplicateMetricName = errors.New("custom metric already registered")
	ErrReservedMetricName  = errors.New("custom metric name collides with a core metric")
)

type registryEntry struct {
	metric CustomMetric
	rule   *Rule
}

// Registry holds custom metrics by unique name. It is not safe for
// concurrent registration; the engine takes a snapshot at construction.
type Registry struct {
	entries map[string]registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds a metric. A nil rule makes the metric informational.
func (r *Registry) Register(name string, metric CustomMetric, rule *Rule) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyMetricName
	}
	if metric == nil {
		return fmt.Errorf("custom metric %q: nil implementation", name)
	}
	if _, err := ParseMetricKind(name); err == nil {
		return fmt.Errorf("%w: %s", ErrReservedMetricName, name)
	}
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMetricName, name)
	}
	var copied *Rule
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("custom metric %q: %w", name, err)
		}
		c := rule.clone()
		copied = &c
	}
	r.entries[name] = registryEntry{metric: metric, rule: copied}
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.entries))
}

// Len is the number of registered metrics.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

func (r *Registry) snapshot() *Registry {
	if r == nil {
		return NewRegistry()
	}
	return &Registry{entries: maps.Clone(r.entries)}
}

// Evaluate computes every custom metric, ordered by name.
func (r *Registry) Evaluate(stats GroupStatisticsSet) []CustomResult {
	names := r.Names()
	results := make([]CustomResult, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		res := CustomResult{Name: name, Result: e.metric.Compute(stats)}
		if e.rule != nil {
			rule := e.rule.clone()
			res.Rule = &rule
		}
		results = append(results, res)
	}
	return results
}

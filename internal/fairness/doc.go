// Package fairness evaluates hiring decisions for group fairness.
//
// A batch of DecisionRecord values is reduced to per-group statistics,
// from which a fixed set of metrics is derived (parity differences and
// ratios, odds differences, predictive parity, error-rate differences and
// the Theil index). A BiasDetector compares the metrics with an injected
// Thresholds profile, a ScoringPolicy turns the violations into a score and
// grade, and AssembleReport collects the result into a FairnessReport.
//
// Everything here is a pure computation over memory. Values that cannot be
// computed are carried as an Unknown Optional with a reason and never as a
// placeholder number.
package fairness

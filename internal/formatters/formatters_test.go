package formatters

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fairaudit/internal/fairness"
	"fairaudit/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func biasedReport(t *testing.T) fairness.FairnessReport {
	t.Helper()
	opts := fairness.DefaultOptions()
	opts.MinRecords = 4
	engine, err := fairness.NewEngine(opts)
	require.NoError(t, err)
	r, err := engine.Evaluate([]fairness.DecisionRecord{
		fairness.NewRecord("men", 1), fairness.NewRecord("men", 1),
		fairness.NewRecord("women", 0), fairness.NewRecord("women", 0),
	})
	require.NoError(t, err)
	return r
}

func TestJSONFormatter(t *testing.T) {
	r := biasedReport(t)
	out, err := GlobalRegistry.Format(r, "json")
	require.NoError(t, err)

	var back fairness.FairnessReport
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, r.Summary, back.Summary)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestReportTextFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(biasedReport(t), "text")
	require.NoError(t, err)

	for _, want := range []string{
		"=== FAIRNESS SUMMARY ===",
		"Bias detected: yes",
		"disparate_impact",
		"n/a (ground_truth_unavailable)",
		"[critical] disparate_impact (women vs men)",
		"=== RECOMMENDATIONS ===",
	} {
		assert.Contains(t, out, want)
	}
	// Core metrics keep their fixed order.
	assert.Less(t, strings.Index(out, "demographic_parity_difference"), strings.Index(out, "theil_index"))
}

func TestReportMarkdownFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(biasedReport(t), "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Fairness Report"))
	assert.Contains(t, out, "| Disparate Impact |")
	assert.Contains(t, out, "| women | 2 | 0 | 0.000 | - | - | - |")
	assert.Contains(t, out, "## Violations")
}

func TestHistoryFormatters(t *testing.T) {
	entries := []types.LedgerEntry{{
		EvaluationID:  "e-1",
		CreatedAt:     time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
		Source:        "cli",
		TotalRecords:  40,
		FairnessScore: 80,
		Grade:         "A",
		Violations:    1,
		ProfileName:   "default",
	}}

	text, err := GlobalRegistry.Format(entries, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "2026-05-04 03:02:01")
	assert.Contains(t, text, "e-1")

	md, err := GlobalRegistry.Format(entries, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "| `e-1` |")

	empty, err := GlobalRegistry.Format([]types.LedgerEntry{}, "text")
	require.NoError(t, err)
	assert.Equal(t, "No evaluations recorded.\n", empty)
}

func TestFormatUnknown(t *testing.T) {
	_, err := GlobalRegistry.Format(biasedReport(t), "xml")
	assert.ErrorContains(t, err, "no formatter found for format 'xml'")

	_, err = GlobalRegistry.Format(map[string]int{"a": 1}, "text")
	assert.Error(t, err, "text has no generic formatter")

	assert.Equal(t, []string{"json", "markdown", "text"}, GlobalRegistry.GetSupportedFormats())
}

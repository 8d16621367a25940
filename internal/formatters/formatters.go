package formatters

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"fairaudit/internal/fairness"
	"fairaudit/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "FairnessReport", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "FairnessReport", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("text", "LedgerEntries", &HistoryTextFormatter{})
	registry.RegisterFormatter("markdown", "LedgerEntries", &HistoryMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	return slices.Sorted(maps.Keys(fr.formatters))
}

func getDataType(data any) string {
	switch data.(type) {
	case fairness.FairnessReport:
		return "FairnessReport"
	case []types.LedgerEntry:
		return "LedgerEntries"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// metricRow is one line of the metrics section.
type metricRow struct {
	name   string
	title  string
	detail fairness.MetricDetail
}

// metricRows lists core metrics in their fixed order, then custom metrics by name.
func metricRows(r fairness.FairnessReport) []metricRow {
	var rows []metricRow
	for _, k := range fairness.AllMetricKinds() {
		detail, ok := r.MetricDetails[k.String()]
		if !ok {
			detail = fairness.MetricDetail{Value: r.FairnessMetrics[k.String()]}
		}
		rows = append(rows, metricRow{name: k.String(), title: k.Title(), detail: detail})
	}
	for _, name := range slices.Sorted(maps.Keys(r.CustomMetrics)) {
		rows = append(rows, metricRow{name: name, title: name, detail: r.CustomMetrics[name]})
	}
	return rows
}

func formatValue(d fairness.MetricDetail) string {
	if v, ok := d.Value.Get(); ok {
		return fmt.Sprintf("%.4f", v)
	}
	if d.Reason != "" {
		return "n/a (" + d.Reason + ")"
	}
	return "n/a"
}

func formatRate(o fairness.Optional) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%.3f", v)
	}
	return "-"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ReportTextFormatter handles plain text formatting for fairness reports
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	r, ok := data.(fairness.FairnessReport)
	if !ok {
		return "", fmt.Errorf("expected FairnessReport, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== FAIRNESS SUMMARY ===\n")
	fmt.Fprintf(&output, "Records: %d (skipped %d)\n", r.Summary.TotalRecords, r.Summary.SkippedRecords)
	fmt.Fprintf(&output, "Fairness score: %.1f/100 (%s)\n", r.Summary.FairnessScore, r.Summary.Grade)
	fmt.Fprintf(&output, "Bias detected: %s\n", yesNo(r.Summary.BiasDetected))
	fmt.Fprintf(&output, "Threshold profile: %s\n\n", r.ThresholdProfile)

	output.WriteString("=== METRICS ===\n")
	tw := tabwriter.NewWriter(&output, 0, 4, 2, ' ', 0)
	for _, row := range metricRows(r) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.name, formatValue(row.detail), strings.Join(row.detail.Groups, " vs "))
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	output.WriteString("\n")

	output.WriteString("=== GROUPS ===\n")
	tw = tabwriter.NewWriter(&output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "group\tcount\tselected\tselection_rate\ttpr\tfpr\tprecision")
	for _, label := range slices.Sorted(maps.Keys(r.GroupStatistics)) {
		g := r.GroupStatistics[label]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n", label, g.Count, g.SelectedCount,
			formatRate(g.SelectionRate), formatRate(g.TruePositiveRate), formatRate(g.FalsePositiveRate), formatRate(g.Precision))
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	output.WriteString("\n")

	if len(r.Violations) > 0 {
		output.WriteString("=== VIOLATIONS ===\n")
		for i, v := range r.Violations {
			fmt.Fprintf(&output, "%d. [%s] %s (%s): %.4f, threshold %.2f\n", i+1, v.Severity, v.Metric, v.Comparison, v.Value, v.Threshold)
		}
		output.WriteString("\n")
	} else {
		output.WriteString("No violations.\n\n")
	}

	output.WriteString("=== RECOMMENDATIONS ===\n")
	for _, rec := range r.Recommendations {
		output.WriteString("- ")
		output.WriteString(rec)
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "FairnessReport"
}

// ReportMarkdownFormatter handles markdown formatting for fairness reports
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	r, ok := data.(fairness.FairnessReport)
	if !ok {
		return "", fmt.Errorf("expected FairnessReport, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Fairness Report\n\n")
	fmt.Fprintf(&output, "**Score:** %.1f/100 (%s)  \n", r.Summary.FairnessScore, r.Summary.Grade)
	fmt.Fprintf(&output, "**Bias detected:** %s  \n", yesNo(r.Summary.BiasDetected))
	fmt.Fprintf(&output, "**Records:** %d (skipped %d)  \n", r.Summary.TotalRecords, r.Summary.SkippedRecords)
	fmt.Fprintf(&output, "**Threshold profile:** `%s`\n\n", r.ThresholdProfile)

	output.WriteString("## Metrics\n\n")
	output.WriteString("| Metric | Value | Groups |\n|---|---|---|\n")
	for _, row := range metricRows(r) {
		fmt.Fprintf(&output, "| %s | %s | %s |\n", row.title, formatValue(row.detail), strings.Join(row.detail.Groups, " vs "))
	}
	output.WriteString("\n")

	output.WriteString("## Groups\n\n")
	output.WriteString("| Group | Count | Selected | Selection rate | TPR | FPR | Precision |\n|---|---|---|---|---|---|---|\n")
	for _, label := range slices.Sorted(maps.Keys(r.GroupStatistics)) {
		g := r.GroupStatistics[label]
		fmt.Fprintf(&output, "| %s | %d | %d | %s | %s | %s | %s |\n", escapeCell(label), g.Count, g.SelectedCount,
			formatRate(g.SelectionRate), formatRate(g.TruePositiveRate), formatRate(g.FalsePositiveRate), formatRate(g.Precision))
	}
	output.WriteString("\n")

	if len(r.Violations) > 0 {
		output.WriteString("## Violations\n\n")
		output.WriteString("| Severity | Metric | Comparison | Value | Threshold |\n|---|---|---|---|---|\n")
		for _, v := range r.Violations {
			fmt.Fprintf(&output, "| %s | %s | %s | %.4f | %.2f |\n", v.Severity, v.Metric, escapeCell(v.Comparison), v.Value, v.Threshold)
		}
		output.WriteString("\n")
	}

	output.WriteString("## Recommendations\n\n")
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&output, "%d. %s\n", i+1, rec)
	}

	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "FairnessReport"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HistoryTextFormatter lists ledger entries as an aligned table
type HistoryTextFormatter struct{}

func (htf *HistoryTextFormatter) Format(data any) (string, error) {
	entries, ok := data.([]types.LedgerEntry)
	if !ok {
		return "", fmt.Errorf("expected []LedgerEntry, got %T", data)
	}
	if len(entries) == 0 {
		return "No evaluations recorded.\n", nil
	}

	var output strings.Builder
	tw := tabwriter.NewWriter(&output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tcreated\tsource\trecords\tscore\tgrade\tviolations\tprofile")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%s\t%d\t%s\n", e.EvaluationID, e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Source, e.TotalRecords, e.FairnessScore, e.Grade, e.Violations, e.ProfileName)
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return output.String(), nil
}

func (htf *HistoryTextFormatter) SupportedType() string {
	return "LedgerEntries"
}

// HistoryMarkdownFormatter lists ledger entries as a markdown table
type HistoryMarkdownFormatter struct{}

func (hmf *HistoryMarkdownFormatter) Format(data any) (string, error) {
	entries, ok := data.([]types.LedgerEntry)
	if !ok {
		return "", fmt.Errorf("expected []LedgerEntry, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Evaluation History\n\n")
	output.WriteString("| ID | Created | Source | Records | Score | Grade | Violations | Profile |\n|---|---|---|---|---|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&output, "| `%s` | %s | %s | %d | %.1f | %s | %d | %s |\n", e.EvaluationID, e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Source, e.TotalRecords, e.FairnessScore, e.Grade, e.Violations, escapeCell(e.ProfileName))
	}
	return output.String(), nil
}

func (hmf *HistoryMarkdownFormatter) SupportedType() string {
	return "LedgerEntries"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()

package common

import (
	"context"
	"time"

	"fairaudit/internal/errors"
	"fairaudit/internal/fairness"
	"fairaudit/internal/ledger"
)

// EvaluateCommand bundles what a file-based evaluation needs.
type EvaluateCommand struct {
	Engine *fairness.Engine
	// Ledger is optional; when set every successful evaluation is recorded.
	Ledger      ledger.Store
	ProfileHash string
}

// RunEvaluateCommand reads a records file, evaluates it and writes the report.
func RunEvaluateCommand(ctx context.Context, logger *errors.Logger, cmdConfig CommandConfig, filename string, cmd EvaluateCommand) (fairness.FairnessReport, error) {
	fileProcessor := NewFileProcessor(logger, cmdConfig.MaxFileSize)
	outputHandler := NewOutputHandler(logger)

	if err := ValidateOutputFormat(cmdConfig.OutputFormat, outputHandler.GetSupportedFormats()); err != nil {
		return fairness.FairnessReport{}, errors.NewValidationError(errors.ErrCodeInvalidFormat, err.Error(), err)
	}

	records, err := fileProcessor.ReadRecordsFile(filename)
	if err != nil {
		return fairness.FairnessReport{}, err
	}

	opts := cmd.Engine.Options()
	logger.Info("Starting fairness evaluation",
		"file", filename,
		"records", len(records),
		"profile", opts.Thresholds.Name(),
		"privileged_group", opts.PrivilegedGroup,
		"mode", opts.Mode.String())

	start := time.Now()
	report, err := cmd.Engine.Evaluate(records)
	if err != nil {
		return fairness.FairnessReport{}, errors.FromFairness(err).WithContext("file", filename)
	}

	logger.Info("Fairness evaluation completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"total_records", report.Summary.TotalRecords,
		"skipped_records", report.Summary.SkippedRecords,
		"violations", len(report.Violations),
		"score", report.Summary.FairnessScore,
		"grade", report.Summary.Grade)

	if cmd.Ledger != nil {
		entry, err := ledger.Record(ctx, cmd.Ledger, ledger.NewEvaluationID(), "cli:"+filename, cmd.ProfileHash, report)
		if err != nil {
			return fairness.FairnessReport{}, errors.NewIOError(errors.ErrCodeLedgerWrite, "Failed to record evaluation", err)
		}
		logger.Info("Evaluation recorded", "evaluation_id", entry.EvaluationID, "fingerprint", entry.Fingerprint)
	}

	return report, outputHandler.HandleOutput(report, cmdConfig)
}

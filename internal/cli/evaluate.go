package cli

import (
	"fmt"

	"fairaudit/internal/common"
	"fairaudit/internal/config"
	"fairaudit/internal/errors"
	"fairaudit/internal/fairness"
	"fairaudit/internal/ledger"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [records-file]",
	Short: "Evaluate a batch of decisions for group fairness",
	Long: `Evaluate a batch of automated decisions and report group statistics,
fairness metrics, threshold violations, a fairness score and grade, and
remediation recommendations.

The records file may be a JSON array, newline-delimited JSON, CSV or TSV.
Columns: group_label, predicted_label, ground_truth_label (optional),
continuous_score (optional).`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		// Apply default format if not specified
		if evaluateConfig.OutputFormat == "" {
			evaluateConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(evaluateConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runEvaluate,
}

var evaluateConfig common.CommandConfig

var evaluateFlags struct {
	favorable  string
	privileged string
	minRecords int
	lenient    bool
	profile    string
	record     bool
	failOnBias bool
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	evaluateCmd.Flags().StringVar(&evaluateConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	evaluateCmd.Flags().StringVar(&evaluateFlags.favorable, "favorable", "", "Label that counts as the favorable outcome: 0 or 1 (default from config)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.privileged, "privileged", "", "Privileged group for directional comparisons")
	evaluateCmd.Flags().IntVar(&evaluateFlags.minRecords, "min-records", 0, "Minimum number of valid records (default from config)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.lenient, "lenient", false, "Skip invalid records instead of failing")
	evaluateCmd.Flags().StringVar(&evaluateFlags.profile, "profile", "", "Threshold profile YAML (overrides fairness.thresholdsFile)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.record, "record", false, "Record the evaluation in the ledger (requires ledger.path)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.failOnBias, "fail-on-bias", false, "Exit non-zero when any violation is detected")

	// Add completion for format flag
	_ = evaluateCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// evaluationSettings merges the fairness config with any flags the user set.
func evaluationSettings(cmd *cobra.Command, cfg *config.Config) (config.FairnessConfig, error) {
	settings := cfg.Fairness
	flags := cmd.Flags()

	if flags.Changed("favorable") {
		label, err := common.ParseFavorableLabel(evaluateFlags.favorable)
		if err != nil {
			return settings, errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err)
		}
		settings.FavorableLabel = label
	}
	if flags.Changed("privileged") {
		settings.PrivilegedGroup = evaluateFlags.privileged
	}
	if flags.Changed("min-records") {
		settings.MinRecords = evaluateFlags.minRecords
	}
	if flags.Changed("lenient") {
		settings.Lenient = evaluateFlags.lenient
	}
	if flags.Changed("profile") {
		settings.ThresholdsFile = evaluateFlags.profile
	}
	if err := settings.Validate(); err != nil {
		return settings, errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err)
	}
	return settings, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	settings, err := evaluationSettings(cmd, cfg)
	if err != nil {
		return err
	}
	profile, err := settings.ResolveThresholds()
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidProfile, "Failed to load threshold profile", err)
	}
	engine, err := fairness.NewEngine(settings.EngineOptions(profile.Thresholds))
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid evaluation options", err)
	}

	run := common.EvaluateCommand{Engine: engine, ProfileHash: profile.Hash}
	if evaluateFlags.record {
		if cfg.Ledger.Path == "" {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, "--record requires ledger.path to be set", nil)
		}
		store, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeLedgerWrite, "Failed to open ledger", err).
				WithContext("path", cfg.Ledger.Path)
		}
		defer func() { _ = store.Close() }()
		run.Ledger = store
	}

	cmdConfig := evaluateConfig
	cmdConfig.MaxFileSize = cfg.App.MaxFileSize
	cmdConfig.Stdout = cmd.OutOrStdout()

	report, err := common.RunEvaluateCommand(cmd.Context(), logger, cmdConfig, args[0], run)
	if err != nil {
		return fmt.Errorf("failed to evaluate records: %w", err)
	}

	if evaluateFlags.failOnBias && report.Summary.BiasDetected {
		return errors.NewValidationError(errors.ErrCodeBiasDetected,
			fmt.Sprintf("%d fairness violation(s) detected, grade %s", len(report.Violations), report.Summary.Grade), nil)
	}
	return nil
}

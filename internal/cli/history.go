package cli

import (
	"encoding/json"
	stderrors "errors"

	"fairaudit/internal/common"
	"fairaudit/internal/errors"
	"fairaudit/internal/fairness"
	"fairaudit/internal/ledger"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluations",
	Long: `List evaluations recorded in the ledger, newest first, or print the
full report of one evaluation with --id. Requires ledger.path.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if historyConfig.OutputFormat == "" {
			historyConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(historyConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runHistory,
}

var historyConfig common.CommandConfig

var historyFlags struct {
	limit int
	id    string
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", ledger.DefaultListLimit, "Maximum number of evaluations to list")
	historyCmd.Flags().StringVar(&historyFlags.id, "id", "", "Print the stored report for this evaluation id")
	historyCmd.Flags().StringVar(&historyConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	historyCmd.Flags().StringVarP(&historyConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.Ledger.Path == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "history requires ledger.path to be set", nil)
	}
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeLedgerRead, "Failed to open ledger", err).
			WithContext("path", cfg.Ledger.Path)
	}
	defer func() { _ = store.Close() }()

	cmdConfig := historyConfig
	cmdConfig.Stdout = cmd.OutOrStdout()
	output := common.NewOutputHandler(logger)

	if historyFlags.id == "" {
		entries, err := store.List(cmd.Context(), historyFlags.limit)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeLedgerRead, "Failed to list evaluations", err)
		}
		return output.HandleOutput(entries, cmdConfig)
	}

	_, raw, err := store.Get(cmd.Context(), historyFlags.id)
	if stderrors.Is(err, ledger.ErrNotFound) {
		return errors.NewValidationError(errors.ErrCodeNotFound, "No evaluation with that id", err).
			WithContext("evaluation_id", historyFlags.id)
	}
	if err != nil {
		return errors.NewIOError(errors.ErrCodeLedgerRead, "Failed to read evaluation", err)
	}

	var report fairness.FairnessReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return errors.NewInternalError(errors.ErrCodeLedgerRead, "Stored report is not valid JSON", err)
	}
	return output.HandleOutput(report, cmdConfig)
}

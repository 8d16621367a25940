package cli

import (
	"encoding/json"
	"fmt"

	"fairaudit/internal/config"
	"fairaudit/internal/errors"

	"github.com/spf13/cobra"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Inspect and validate threshold profiles",
	Long: `A threshold profile assigns each fairness metric a pass rule and
severity bands. Without a profile file the built-in default is used.`,
}

var thresholdsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active threshold profile",
	Args:  cobra.NoArgs,
	RunE:  runThresholdsShow,
}

var thresholdsValidateCmd = &cobra.Command{
	Use:   "validate [profile-file]",
	Short: "Check that a threshold profile file parses and is consistent",
	Args:  cobra.ExactArgs(1),
	RunE:  runThresholdsValidate,
}

var thresholdsFlags struct {
	profile string
	format  string
}

func init() {
	thresholdsShowCmd.Flags().StringVar(&thresholdsFlags.profile, "profile", "", "Threshold profile YAML (overrides fairness.thresholdsFile)")
	thresholdsShowCmd.Flags().StringVar(&thresholdsFlags.format, "format", "yaml", "Output format: yaml or json")

	thresholdsCmd.AddCommand(thresholdsShowCmd)
	thresholdsCmd.AddCommand(thresholdsValidateCmd)
}

func runThresholdsShow(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}

	settings := cfg.Fairness
	if cmd.Flags().Changed("profile") {
		settings.ThresholdsFile = thresholdsFlags.profile
	}
	profile, err := settings.ResolveThresholds()
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidProfile, "Failed to load threshold profile", err)
	}

	var out []byte
	switch thresholdsFlags.format {
	case "yaml":
		out, err = config.MarshalThresholdProfile(profile.Thresholds)
	case "json":
		out, err = json.MarshalIndent(config.DocumentFor(profile.Thresholds), "", "  ")
		out = append(out, '\n')
	default:
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported profile format '%s'. Supported formats: [yaml json]", thresholdsFlags.format), nil)
	}
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidProfile, "Failed to encode threshold profile", err)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runThresholdsValidate(cmd *cobra.Command, args []string) error {
	profile, err := config.LoadThresholdProfile(args[0])
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidProfile, "Threshold profile is invalid", err).
			WithContext("file", args[0])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile %q is valid (%d rules, %s)\n",
		profile.Thresholds.Name(), len(profile.Thresholds.Kinds()), profile.Hash)
	return nil
}

package cli

import (
	"context"
	"fmt"

	"fairaudit/internal/config"
	"fairaudit/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootFlags struct {
	configFile string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "fairaudit",
	Short: "Audit automated decisions for group fairness",
	Long: `fairaudit evaluates batches of automated decisions for disparate
treatment across groups. It computes group statistics and fairness metrics,
flags threshold violations with severities, scores the batch and recommends
remediation. It runs as a CLI over record files or as an HTTP service.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyRootFlags,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// applyRootFlags reloads config from --config and rebuilds the logger for --log-level.
func applyRootFlags(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if rootFlags.configFile != "" {
		cfg, err := config.LoadConfigFile(rootFlags.configFile)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load config file", err).
				WithContext("file", rootFlags.configFile)
		}
		ctx = context.WithValue(ctx, configKey, cfg)
	}

	if rootFlags.logLevel != "" {
		logger, err := errors.New(rootFlags.logLevel)
		if err != nil {
			return err
		}
		ctx = context.WithValue(ctx, loggerKey, logger)
	}

	cmd.SetContext(ctx)
	return nil
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok && logger != nil {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "", "Config file (default: ./config.yaml, $HOME/.fairaudit, /etc/fairaudit)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(thresholdsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

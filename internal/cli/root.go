// Package cli implements the batchsamples command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/config"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/logging"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/samples"
)

var (
	flagConfig       string
	flagSampleConfig string
	flagResources    string
	flagDebug        bool
	flagLogLevel     string
	flagLogFormat    string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command with one subcommand per sample.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "batchsamples",
		Short: "Azure Batch samples",
		Long: "batchsamples runs Azure Batch samples against the account in the global\n" +
			"configuration file. Each sample stages its input, submits work, waits for\n" +
			"it and removes what its sample configuration says to delete.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			if _, err := logging.ParseLevel(flagLogLevel); err != nil {
				return err
			}
			logger = logging.New(logging.Options{
				Level:  flagLogLevel,
				Format: flagLogFormat,
				Writer: cmd.ErrOrStderr(),
			})
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultGlobalFile, "Global configuration file (YAML, or TOML with a .toml extension)")
	root.PersistentFlags().StringVar(&flagSampleConfig, "sample-config", "", "Sample configuration file (default <sample>.yaml)")
	root.PersistentFlags().StringVar(&flagResources, "resources", "resources", "Directory holding "+samples.SimpleTaskFile)
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	for _, s := range samples.DefaultRegistry(nil).All() {
		root.AddCommand(newSampleCmd(s))
	}
	return root
}

// Package commands defines all Cobra CLI commands for the paperqa binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/paperqa/paperqa-go/internal/audit"
	"github.com/paperqa/paperqa-go/internal/config"
	"github.com/paperqa/paperqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paperqa",
		Short: "paperqa — ask questions about your scientific papers",
		Long: `paperqa ingests scientific papers (PDF, plain text, Markdown) into a
Qdrant vector index and answers natural-language questions about them.
Every answer cites the passages it came from, rendered as a colored
reference legend.

Embedding and completion backends are selected via environment variables
or a YAML config file (~/.paperqa/config.yaml).
See 'paperqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A .env in the working directory is a convenience, not a requirement.
			_ = godotenv.Load()

			log := logging.New()
			slog.SetDefault(log)

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.paperqa/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewStatusCmd(),
		NewInvalidateCmd(),
		NewVersionCmd(),
	)

	return root
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dverna/alarm-guardian/internal/config"
	"github.com/dverna/alarm-guardian/internal/service/guardian"
	"github.com/dverna/alarm-guardian/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// auditFile overrides the audit trail path from the configuration.
	auditFile string

	// rootCmd represents the base command for running the guardian.
	rootCmd = &cobra.Command{
		Use:   "alarm-guardian",
		Short: "Run the alarm correlation and escalation engine.",
		Long: `Starts the alarm guardian: the intelligence layer between classified
sensor events and the physical alarm panel.

Commands and sensor events are read as JSON lines from standard input;
state transitions, status snapshots and command results are written as
JSON lines to standard output. Zones, confirmation profiles, delays and
escalation settings come from the configuration file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &guardian.Options{
				ConfigPath: configPath,
				AuditFile:  auditFile,
			}

			return guardian.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-guardian CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&auditFile, "audit-file", "a", "", "path to the JSON-lines audit trail")
}

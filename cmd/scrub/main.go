package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/logging"
)

// app is the state shared by every subcommand once the root has initialised.
type app struct {
	env        config.Env
	log        *zap.Logger
	configPath string
	logLevel   string
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:           "scrub",
		Short:         "Contact list scrubber",
		Long:          `Removes blacklisted and already-sold contacts from a distribution list and writes the CRM import file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			a.env = config.FromEnv()
			if a.configPath == "" {
				a.configPath = a.env.ConfigPath
			}
			if a.logLevel == "" {
				a.logLevel = a.env.LogLevel
			}

			log, err := logging.New(a.logLevel, a.env.PrettyLogs)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML run config (default $SCRUB_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (default $LOG_LEVEL or info)")

	rootCmd.AddCommand(createRunCmd(a))
	rootCmd.AddCommand(createCheckCmd(a))
	rootCmd.AddCommand(createColumnsCmd(a))
	rootCmd.AddCommand(createServeCmd(a))

	return rootCmd
}

// runFile loads the configured run file, or the defaults when none is set.
func (a *app) runFile() (*config.File, error) {
	if a.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(a.configPath)
}

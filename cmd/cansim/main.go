package main

import (
	"os"

	"github.com/spf13/cobra"

	"omibyte.io/bxcan/internal/logging"
)

var (
	rootOpts = struct {
		logFormat string
		logLevel  string
	}{}

	rootCmd = &cobra.Command{
		Use:           "cansim",
		Short:         "Simulate bxCAN controllers on a shared bus",
		Long:          "cansim drives simulated bxCAN controllers through the register-level driver, for trying out configurations and filters without hardware.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(rootOpts.logLevel)
			if err != nil {
				return err
			}
			logging.Set(logging.New(rootOpts.logFormat, level, cmd.ErrOrStderr()).With("app", "cansim"))
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.logFormat, "log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(runCmd, targetsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.L().Error("cansim_error", "error", err)
		os.Exit(1)
	}
}

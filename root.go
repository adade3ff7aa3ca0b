package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	appCtx := newAppContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "fablecast",
		Short:         "Discover, track, and batch-generate derived audio for script projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug|info|warn|error")

	rootCmd.AddCommand(newSyncCommand(appCtx))
	rootCmd.AddCommand(newStatusCommand(appCtx))
	rootCmd.AddCommand(newLoadCommand(appCtx))
	rootCmd.AddCommand(newGenerateCommand(appCtx))
	rootCmd.AddCommand(newBatchCommand(appCtx))

	return rootCmd
}

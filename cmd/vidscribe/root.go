package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var devFlag bool

	ctx := newCommandContext(&configFlag, &devFlag)

	rootCmd := &cobra.Command{
		Use:           "vidscribe",
		Short:         "Batch video transcription pipeline",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&devFlag, "dev", false, "Developer mode: console logs, unredacted secrets")

	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newExpandCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newRescueCommand(ctx))
	rootCmd.AddCommand(newReprocessCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))

	return rootCmd
}

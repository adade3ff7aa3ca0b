package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/averlund/fablecast/plan"
	"github.com/averlund/fablecast/runner"
)

func newGenerateCommand(appCtx *appContext) *cobra.Command {
	var outputPath string
	var format string
	var castList string
	var skipExisting bool
	var regenerate bool
	var preHook string
	var postHook string

	cmd := &cobra.Command{
		Use:   "generate <input-file>",
		Short: "Generate derived audio for a single script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := resolveRootArg(args[0])
			if err != nil {
				return err
			}
			if format == "" {
				return fmt.Errorf("--format is required")
			}
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}

			logger, err := appCtx.ensureLogger()
			if err != nil {
				return err
			}
			cfg, err := appCtx.ensureConfig()
			if err != nil {
				return err
			}

			executor := &generationExecutor{
				cfg:      cfg,
				runner:   &runner.ExecRunner{Logger: logger},
				logger:   logger,
				preHook:  preHook,
				postHook: postHook,
			}

			result := executor.executeOne(cmd.Context(), plan.Command{
				InputPath:    input,
				OutputPath:   outputPath,
				Format:       format,
				CastListPath: castList,
				SkipExisting: skipExisting,
				Regenerate:   regenerate,
			})
			if result.Err != nil {
				return result.Err
			}
			if result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: output exists\n", input)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", result.Command.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format (output extension)")
	cmd.Flags().StringVar(&castList, "cast-list", "", "Cast list file to pass to the generator")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip when the output already exists")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Regenerate even when the output exists")
	cmd.Flags().StringVar(&preHook, "pre-hook", "", "Shell command to run before generation")
	cmd.Flags().StringVar(&postHook, "post-hook", "", "Shell command to run after generation")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/averlund/fablecast/manifest"
	"github.com/averlund/fablecast/plan"
	"github.com/averlund/fablecast/runner"
)

func newBatchCommand(appCtx *appContext) *cobra.Command {
	var episodesDir string
	var outputDir string
	var patterns []string
	var format string
	var castList string
	var withCastList bool
	var resumeFrom int
	var skipExisting bool
	var regenerate bool
	var failFast bool

	cmd := &cobra.Command{
		Use:   "batch [project-root]",
		Short: "Plan and run generation for every matching episode file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootArg := ""
			if len(args) == 1 {
				rootArg = args[0]
			}
			root, err := resolveRootArg(rootArg)
			if err != nil {
				return err
			}

			logger, err := appCtx.ensureLogger()
			if err != nil {
				return err
			}
			cfg, err := appCtx.ensureConfig()
			if err != nil {
				return err
			}

			fsys := appCtx.filesystem()

			// Manifest metadata provides defaults; flags override.
			meta, _, err := manifest.Load(fsys, root)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			planCfg := plan.FromMetadata(root, meta)

			if episodesDir != "" {
				planCfg.EpisodesDir = episodesDir
			}
			if outputDir != "" {
				planCfg.OutputDir = outputDir
			}
			if len(patterns) > 0 {
				planCfg.Patterns = patterns
			}
			if format != "" {
				planCfg.ExportFormat = format
			}
			if castList != "" {
				planCfg.CastList = castList
			}
			planCfg.WithCastList = withCastList
			planCfg.ResumeFromIndex = resumeFrom
			planCfg.SkipExisting = skipExisting
			planCfg.Regenerate = regenerate
			planCfg.FailFast = failFast

			planner := plan.NewPlanner(fsys, logger)
			p, err := planner.BuildPlan(planCfg)
			if err != nil {
				return err
			}
			if len(p.Commands) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to generate")
				return nil
			}

			executor := &generationExecutor{
				cfg:      cfg,
				runner:   &runner.ExecRunner{Logger: logger},
				logger:   logger,
				preHook:  planCfg.PreHook,
				postHook: planCfg.PostHook,
			}
			outcome := executor.executeBatch(cmd.Context(), p.Commands)

			fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(outcome))
			succeeded, failed, skipped := outcome.counts()
			fmt.Fprintf(cmd.OutOrStdout(), "%d generated, %d failed, %d skipped\n", succeeded, failed, skipped)
			if failed > 0 {
				return fmt.Errorf("%d of %d commands failed", failed, len(outcome.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodesDir, "episodes-dir", "", "Episode subdirectory (default from manifest)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output subdirectory (default from manifest)")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "Filename pattern, glob or literal (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format (default from manifest)")
	cmd.Flags().StringVar(&castList, "cast-list", "", "Cast list location (default from manifest)")
	cmd.Flags().BoolVar(&withCastList, "with-cast-list", false, "Pass the cast list to the generator")
	cmd.Flags().IntVar(&resumeFrom, "resume-from", 0, "1-based index to resume the batch from")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip files whose output already exists")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Regenerate even when outputs exist")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop the batch at the first failure")
	return cmd
}

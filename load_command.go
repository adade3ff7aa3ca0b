package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/averlund/fablecast/loader"
)

func newLoadCommand(appCtx *appContext) *cobra.Command {
	var unload bool
	var forceReset bool
	var remove bool

	cmd := &cobra.Command{
		Use:   "load <project-root> <relative-path>",
		Short: "Load, unload, or recover a single tracked reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRootArg(args[0])
			if err != nil {
				return err
			}
			relativePath := args[1]

			logger, err := appCtx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := appCtx.ensureStore()
			if err != nil {
				return err
			}
			defer appCtx.close()

			ctx := cmd.Context()
			project, err := st.ProjectByRoot(ctx, root)
			if err != nil {
				return err
			}
			if project == nil {
				return fmt.Errorf("no project registered for %q; run sync first", root)
			}

			engine := loader.NewEngine(st, appCtx.locator(), appCtx.filesystem(), scriptSummaryParser{}, logger)

			switch {
			case remove:
				if err := engine.Delete(ctx, project.ID, relativePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted reference %s\n", relativePath)
			case forceReset:
				if err := engine.ForceReset(ctx, project.ID, relativePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to not_loaded\n", relativePath)
			case unload:
				if err := engine.Unload(ctx, project.ID, relativePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unloaded %s\n", relativePath)
			default:
				if err := engine.Load(ctx, project.ID, relativePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s\n", relativePath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unload, "unload", false, "Discard cached derived content and return to not_loaded")
	cmd.Flags().BoolVar(&forceReset, "force-reset", false, "Recover a reference stuck in loading")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the reference record explicitly")
	cmd.MarkFlagsMutuallyExclusive("unload", "force-reset", "delete")
	return cmd
}

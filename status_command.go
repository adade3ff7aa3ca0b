package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/averlund/fablecast/ref"
)

func newStatusCommand(appCtx *appContext) *cobra.Command {
	var stateFilter string

	cmd := &cobra.Command{
		Use:   "status [project-root]",
		Short: "Show tracked references and their load states",
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

			refs, err := st.FetchAllByProject(ctx, project.ID)
			if err != nil {
				return err
			}

			var filter ref.LoadState
			if stateFilter != "" {
				parsed, ok := ref.ParseState(stateFilter)
				if !ok {
					return fmt.Errorf("unknown load state %q", stateFilter)
				}
				filter = parsed
			}

			rows := make([][]string, 0, len(refs))
			for _, r := range refs {
				if filter != "" && r.State != filter {
					continue
				}
				rows = append(rows, []string{
					r.RelativePath,
					string(r.State),
					formatModTime(r.LastKnownModTime),
					formatModTime(r.LastLoadedModTime),
					r.ErrorMessage,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"Path", "State", "Modified", "Loaded", "Error"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "%d references\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&stateFilter, "state", "", "Only show references in this load state")
	return cmd
}

func formatModTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/averlund/fablecast/handle"
	"github.com/averlund/fablecast/manifest"
	"github.com/averlund/fablecast/scan"
	"github.com/averlund/fablecast/syncer"
)

func newSyncCommand(appCtx *appContext) *cobra.Command {
	var extensions []string

	cmd := &cobra.Command{
		Use:   "sync [project-root]",
		Short: "Discover project files and reconcile the persisted reference set",
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
			st, err := appCtx.ensureStore()
			if err != nil {
				return err
			}
			defer appCtx.close()

			ctx := cmd.Context()
			project, err := st.EnsureProject(ctx, root)
			if err != nil {
				return err
			}

			locator := appCtx.locator()
			h, err := ensureProjectHandle(ctx, appCtx, locator, project.ID, root)
			if err != nil {
				return err
			}

			fsys := appCtx.filesystem()
			scanner := scan.NewScanner(fsys, logger)
			excluder := scan.NewExcluder(fsys, root, scan.ExcluderOptions{ManifestName: manifest.Filename})

			var result syncer.Result
			// Scoped access spans exactly one scan-and-reconcile pass.
			err = locator.WithScopedAccess(ctx, h, root, func() error {
				entries, scanErr := scanner.Scan(root, excluder, extensions)
				if scanErr != nil {
					return scanErr
				}
				var syncErr error
				result, syncErr = syncer.New(st, logger).Synchronize(ctx, project.ID, entries)
				return syncErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Synchronized %d references: %d created, %d stale, %d missing, %d rediscovered (%s)\n",
				result.Total(), result.Created, result.WentStale, result.WentMissing,
				result.Rediscovered, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Only include these file extensions (repeatable)")
	return cmd
}

// ensureProjectHandle resolves the project's stored capability token,
// minting one on first use and refreshing a stale one. The replacement
// token is persisted before use.
func ensureProjectHandle(ctx context.Context, appCtx *appContext, locator handle.Locator, projectID, root string) (handle.Handle, error) {
	st, err := appCtx.ensureStore()
	if err != nil {
		return handle.Handle{}, err
	}
	project, err := st.ProjectByID(ctx, projectID)
	if err != nil {
		return handle.Handle{}, err
	}

	if project.HandleToken == "" {
		h, err := locator.CreateHandle(ctx, root)
		if err != nil {
			return handle.Handle{}, err
		}
		if err := st.UpdateProjectHandle(ctx, projectID, h.Token); err != nil {
			return handle.Handle{}, err
		}
		return h, nil
	}

	h := handle.Handle{Token: project.HandleToken}
	path, stale, err := locator.Resolve(ctx, h)
	if err != nil {
		return handle.Handle{}, err
	}
	if !stale {
		h.LastPath = path
		return h, nil
	}

	refreshed, err := locator.RefreshIfStale(ctx, h)
	if err != nil {
		return handle.Handle{}, err
	}
	if err := st.UpdateProjectHandle(ctx, projectID, refreshed.Token); err != nil {
		return handle.Handle{}, err
	}
	return refreshed, nil
}

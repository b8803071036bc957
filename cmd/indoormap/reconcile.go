package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Replay pending reconcile tasks and repair summary drift once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Services.Reconciler.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed=%d failed=%d skipped=%d fixes=%d\n",
					report.Replayed, report.Failed, report.Skipped, report.Fixes)
				return nil
			})
		},
	}
}

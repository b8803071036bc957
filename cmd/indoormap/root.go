package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "indoormap",
		Short:         "Indoor map backend: assets, floor maps, locations and chokePoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newImportCmd(),
		newBuildTilesCmd(),
		newReconcileCmd(),
		newWatchImportsCmd(),
	)
	return root
}

// withApp builds the application without the HTTP server, runs fn and
// closes everything afterwards.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, false)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return fn(a)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var (
		file  string
		kinds []string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture assets, maps and chokePoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := seed.DefaultFixtures()
			if file != "" {
				fixtures, err = seed.LoadFixtures(file)
			}
			if err != nil {
				return err
			}
			only, err := seed.ParseKinds(kinds)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				reg := seed.NewRegistry(a.Log, seed.Services{
					Repos:       a.Repos,
					Assets:      a.Services.Assets,
					FloorMaps:   a.Services.FloorMaps,
					ChokePoints: a.Services.ChokePoints,
				})
				counts, err := reg.Run(dbctx.Context{Ctx: cmd.Context()}, fixtures, only...)
				if err != nil {
					return err
				}
				for _, k := range reg.Kinds() {
					if n, ok := counts[k]; ok {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %d created\n", k, n)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML fixtures file (defaults to the built-in fixtures)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "seed only these kinds and their dependencies (asset, map, chokePoint)")
	return cmd
}

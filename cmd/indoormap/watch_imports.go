package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
	"github.com/yungbote/indoormap-backend/internal/ingest"
)

func newWatchImportsCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "watch-imports --dir <dir>",
		Short: "Import every chokePoint CSV dropped into a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				w, err := ingest.NewWatcher(a.Log, dir, a.Services.Importer, ingest.Options{})
				if err != nil {
					return err
				}
				return w.Run(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

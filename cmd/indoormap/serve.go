package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background reconciler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, true)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()

			a.Start(ctx)
			return a.Run(ctx)
		},
	}
}

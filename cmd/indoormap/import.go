package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-chokepoints <csv>",
		Short: "Bulk upsert chokePoints from a name,macAddress CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cmd.Context(), func(a *app.App) error {
				rows, err := a.Services.Importer.ImportCSV(dbctx.Context{Ctx: cmd.Context()}, f)
				if err != nil {
					return err
				}
				for _, cp := range rows {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", cp.ID, cp.MacAddress, cp.Name)
				}
				return nil
			})
		},
	}
}

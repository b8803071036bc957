package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/indoormap-backend/internal/app"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/services"
)

func newBuildTilesCmd() *cobra.Command {
	var mapID string
	cmd := &cobra.Command{
		Use:   "build-tiles --map <id> <image>",
		Short: "Re-tile a map from a local JPEG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(mapID)
			if err != nil {
				return fmt.Errorf("--map: %w", err)
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				dbc := dbctx.Context{Ctx: cmd.Context()}
				m, err := a.Services.FloorMaps.Get(dbc, id)
				if err != nil {
					return err
				}
				// The map service consumes its input file, so hand it a copy.
				tmp, err := copyToTemp(args[0], a.Cfg.UploadDir)
				if err != nil {
					return err
				}
				updated, err := a.Services.FloorMaps.Update(dbc, id, services.FloorMapInput{
					Name:      m.Name,
					AssetID:   m.AssetID,
					ImagePath: tmp,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "map %s: %dx%d maxZoom=%d path=%s\n",
					updated.ID, updated.Width, updated.Height, updated.MaxZoom, updated.Path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mapID, "map", "", "map id")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(dir, "map-*"+filepath.Ext(src))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

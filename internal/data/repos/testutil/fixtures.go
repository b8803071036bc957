package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
)

func SeedAsset(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Asset {
	tb.Helper()
	a := &types.Asset{ID: uuid.New(), Name: name}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed asset: %v", err)
	}
	return a
}

// SeedFloorMap inserts a bare map row. No summaries are maintained; use the
// services to build consistent graphs.
func SeedFloorMap(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, width, height int) *types.FloorMap {
	tb.Helper()
	m := &types.FloorMap{ID: uuid.New(), Name: name, Width: width, Height: height}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed map: %v", err)
	}
	return m
}

func SeedLocation(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Location {
	tb.Helper()
	l := &types.Location{ID: uuid.New(), Name: name, Position: types.Position{Lat: 41.01, Lng: 28.97}}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed location: %v", err)
	}
	return l
}

func SeedChokePoint(tb testing.TB, ctx context.Context, tx *gorm.DB, name, mac string) *types.ChokePoint {
	tb.Helper()
	c := &types.ChokePoint{ID: uuid.New(), Name: name, MacAddress: mac}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chokePoint: %v", err)
	}
	return c
}

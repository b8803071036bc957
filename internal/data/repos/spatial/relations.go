package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// Summary arrays held by parents.

func NewAssetMapsArray(db *gorm.DB, baseLog *logger.Logger) SummaryArray {
	return newSummaryArray(db, baseLog, types.Asset{}.TableName(), "maps",
		func(a *types.Asset) *types.Summaries { return &a.Maps })
}

func NewAssetLocationsArray(db *gorm.DB, baseLog *logger.Logger) SummaryArray {
	return newSummaryArray(db, baseLog, types.Asset{}.TableName(), "locations",
		func(a *types.Asset) *types.Summaries { return &a.Locations })
}

func NewFloorMapChokePointsArray(db *gorm.DB, baseLog *logger.Logger) SummaryArray {
	return newSummaryArray(db, baseLog, types.FloorMap{}.TableName(), "choke_points",
		func(m *types.FloorMap) *types.Summaries { return &m.ChokePoints })
}

func NewLocationChokePointsArray(db *gorm.DB, baseLog *logger.Logger) SummaryArray {
	return newSummaryArray(db, baseLog, types.Location{}.TableName(), "choke_points",
		func(l *types.Location) *types.Summaries { return &l.ChokePoints })
}

// Parent references held by children.

func NewFloorMapAssetRef(db *gorm.DB, baseLog *logger.Logger) ParentRef {
	return newParentRef(db, baseLog, types.FloorMap{}.TableName(), "asset_id", "asset_ref", nil,
		func(m *types.FloorMap) types.Summary { return m.Summary() },
		func(m *types.FloorMap) (*uuid.UUID, *types.Summary) { return m.AssetID, m.AssetRef })
}

func NewLocationAssetRef(db *gorm.DB, baseLog *logger.Logger) ParentRef {
	return newParentRef(db, baseLog, types.Location{}.TableName(), "asset_id", "asset_ref", nil,
		func(l *types.Location) types.Summary { return l.Summary() },
		func(l *types.Location) (*uuid.UUID, *types.Summary) { return l.AssetID, l.AssetRef })
}

// Position only has meaning on a map, so clearing the map reference clears x and y too.
func NewChokePointMapRef(db *gorm.DB, baseLog *logger.Logger) ParentRef {
	return newParentRef(db, baseLog, types.ChokePoint{}.TableName(), "map_id", "map_ref", []string{"x", "y"},
		func(c *types.ChokePoint) types.Summary { return c.Summary() },
		func(c *types.ChokePoint) (*uuid.UUID, *types.Summary) { return c.MapID, c.MapRef })
}

func NewChokePointLocationRef(db *gorm.DB, baseLog *logger.Logger) ParentRef {
	return newParentRef(db, baseLog, types.ChokePoint{}.TableName(), "location_id", "location_ref", nil,
		func(c *types.ChokePoint) types.Summary { return c.Summary() },
		func(c *types.ChokePoint) (*uuid.UUID, *types.Summary) { return c.LocationID, c.LocationRef })
}

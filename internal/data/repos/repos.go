package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/indoormap-backend/internal/data/repos/spatial"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type AssetRepo = spatial.AssetRepo
type FloorMapRepo = spatial.FloorMapRepo
type LocationRepo = spatial.LocationRepo
type ChokePointRepo = spatial.ChokePointRepo
type ReconcileTaskRepo = spatial.ReconcileTaskRepo

type SummaryArray = spatial.SummaryArray
type ParentRef = spatial.ParentRef

// Set is every repository the service layer needs, built over one *gorm.DB.
type Set struct {
	Assets         AssetRepo
	FloorMaps      FloorMapRepo
	Locations      LocationRepo
	ChokePoints    ChokePointRepo
	ReconcileTasks ReconcileTaskRepo

	AssetMaps           SummaryArray
	AssetLocations      SummaryArray
	FloorMapChokePoints SummaryArray
	LocationChokePoints SummaryArray

	FloorMapAsset      ParentRef
	LocationAsset      ParentRef
	ChokePointMap      ParentRef
	ChokePointLocation ParentRef
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Assets:         spatial.NewAssetRepo(db, log),
		FloorMaps:      spatial.NewFloorMapRepo(db, log),
		Locations:      spatial.NewLocationRepo(db, log),
		ChokePoints:    spatial.NewChokePointRepo(db, log),
		ReconcileTasks: spatial.NewReconcileTaskRepo(db, log),

		AssetMaps:           spatial.NewAssetMapsArray(db, log),
		AssetLocations:      spatial.NewAssetLocationsArray(db, log),
		FloorMapChokePoints: spatial.NewFloorMapChokePointsArray(db, log),
		LocationChokePoints: spatial.NewLocationChokePointsArray(db, log),

		FloorMapAsset:      spatial.NewFloorMapAssetRef(db, log),
		LocationAsset:      spatial.NewLocationAssetRef(db, log),
		ChokePointMap:      spatial.NewChokePointMapRef(db, log),
		ChokePointLocation: spatial.NewChokePointLocationRef(db, log),
	}
}

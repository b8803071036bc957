package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type AssetInput struct {
	Name string `json:"name" validate:"required,max=128"`
}

type AssetService interface {
	List(dbc dbctx.Context) ([]*types.Asset, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error)
	Create(dbc dbctx.Context, in AssetInput) (*types.Asset, error)
	Update(dbc dbctx.Context, id uuid.UUID, in AssetInput) (*types.Asset, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error)

	ListMaps(dbc dbctx.Context, assetID uuid.UUID) ([]*types.FloorMap, error)
	GetMap(dbc dbctx.Context, assetID, mapID uuid.UUID) (*types.FloorMap, error)
	ListLocations(dbc dbctx.Context, assetID uuid.UUID) ([]*types.Location, error)
	GetLocation(dbc dbctx.Context, assetID, locationID uuid.UUID) (*types.Location, error)
}

type assetService struct {
	log    *logger.Logger
	repos  repos.Set
	engine ConsistencyEngine
}

func NewAssetService(log *logger.Logger, rs repos.Set, engine ConsistencyEngine) AssetService {
	return &assetService{
		log:    log.With("service", "AssetService"),
		repos:  rs,
		engine: engine,
	}
}

func (s *assetService) List(dbc dbctx.Context) ([]*types.Asset, error) {
	rows, err := s.repos.Assets.List(dbc)
	if err != nil {
		return nil, apierr.Wrap(err, "list assets")
	}
	return rows, nil
}

func (s *assetService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error) {
	row, err := s.repos.Assets.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load asset")
	}
	if row == nil {
		return nil, apierr.NotFound("asset %s not found", id)
	}
	return row, nil
}

func (s *assetService) Create(dbc dbctx.Context, in AssetInput) (*types.Asset, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	row, err := s.repos.Assets.Create(dbc, &types.Asset{Name: in.Name})
	if err != nil {
		return nil, apierr.Wrap(err, "create asset")
	}
	s.log.Info("asset created", "asset_id", row.ID)
	return row, nil
}

// Update renames the asset and republishes the name into every map and
// location that references it.
func (s *assetService) Update(dbc dbctx.Context, id uuid.UUID, in AssetInput) (*types.Asset, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindAsset, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	row, err := s.repos.Assets.UpdateFields(dbc, id, map[string]interface{}{"name": in.Name})
	if err != nil {
		return nil, apierr.Wrap(err, "update asset")
	}
	err = s.engine.Track(dbc, types.KindAsset, id, "update", func(dbc dbctx.Context) error {
		return s.engine.Refresh(dbc, types.KindAsset, id)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *assetService) Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error) {
	return s.engine.Delete(dbc, types.KindAsset, id)
}

func (s *assetService) ListMaps(dbc dbctx.Context, assetID uuid.UUID) ([]*types.FloorMap, error) {
	if _, err := s.Get(dbc, assetID); err != nil {
		return nil, err
	}
	rows, err := s.repos.FloorMaps.ListByAsset(dbc, assetID)
	if err != nil {
		return nil, apierr.Wrap(err, "list asset maps")
	}
	return rows, nil
}

func (s *assetService) GetMap(dbc dbctx.Context, assetID, mapID uuid.UUID) (*types.FloorMap, error) {
	row, err := s.repos.FloorMaps.GetByIDAndAsset(dbc, mapID, assetID)
	if err != nil {
		return nil, apierr.Wrap(err, "load asset map")
	}
	if row == nil {
		return nil, apierr.NotFound("map %s not found on asset %s", mapID, assetID)
	}
	return row, nil
}

func (s *assetService) ListLocations(dbc dbctx.Context, assetID uuid.UUID) ([]*types.Location, error) {
	if _, err := s.Get(dbc, assetID); err != nil {
		return nil, err
	}
	rows, err := s.repos.Locations.ListByAsset(dbc, assetID)
	if err != nil {
		return nil, apierr.Wrap(err, "list asset locations")
	}
	return rows, nil
}

func (s *assetService) GetLocation(dbc dbctx.Context, assetID, locationID uuid.UUID) (*types.Location, error) {
	row, err := s.repos.Locations.GetByIDAndAsset(dbc, locationID, assetID)
	if err != nil {
		return nil, apierr.Wrap(err, "load asset location")
	}
	if row == nil {
		return nil, apierr.NotFound("location %s not found on asset %s", locationID, assetID)
	}
	return row, nil
}

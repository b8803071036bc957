package services

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

type FloorMapInput struct {
	Name    string     `json:"name" validate:"required,max=128"`
	AssetID *uuid.UUID `json:"assetId,omitempty"`
	// ImagePath is an uploaded temp file. The service owns it from the call
	// on and removes it on every path.
	ImagePath string `json:"-"`
}

type FloorMapService interface {
	List(dbc dbctx.Context) ([]*types.FloorMap, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.FloorMap, error)
	Create(dbc dbctx.Context, in FloorMapInput) (*types.FloorMap, error)
	// Update renames and reparents the map; with an image it is re-tiled in
	// place and tiles the new pyramid no longer needs are removed.
	Update(dbc dbctx.Context, id uuid.UUID, in FloorMapInput) (*types.FloorMap, error)
	SetRatio(dbc dbctx.Context, id uuid.UUID, ratio float64) (*types.FloorMap, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error)

	ListChokePoints(dbc dbctx.Context, mapID uuid.UUID) ([]*types.ChokePoint, error)
	UpdateChokePointPosition(dbc dbctx.Context, mapID, chokePointID uuid.UUID, x, y float64) (*types.ChokePoint, error)
}

type floorMapService struct {
	log         *logger.Logger
	repos       repos.Set
	engine      ConsistencyEngine
	builder     tiles.Builder
	store       tilestore.Store
	chokePoints ChokePointService
	assetRel    *Relation
}

func NewFloorMapService(
	log *logger.Logger,
	rs repos.Set,
	engine ConsistencyEngine,
	builder tiles.Builder,
	store tilestore.Store,
	chokePoints ChokePointService,
) FloorMapService {
	return &floorMapService{
		log:         log.With("service", "FloorMapService"),
		repos:       rs,
		engine:      engine,
		builder:     builder,
		store:       store,
		chokePoints: chokePoints,
		assetRel:    engine.Relations().MustGet(RelationAssetMaps),
	}
}

// MapStorageKey is the tile storage prefix of a map's pyramid.
func MapStorageKey(mapID uuid.UUID) string {
	return "maps/" + mapID.String()
}

func (s *floorMapService) List(dbc dbctx.Context) ([]*types.FloorMap, error) {
	rows, err := s.repos.FloorMaps.List(dbc)
	if err != nil {
		return nil, apierr.Wrap(err, "list maps")
	}
	return rows, nil
}

func (s *floorMapService) Get(dbc dbctx.Context, id uuid.UUID) (*types.FloorMap, error) {
	row, err := s.repos.FloorMaps.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load map")
	}
	if row == nil {
		return nil, apierr.NotFound("map %s not found", id)
	}
	return row, nil
}

func (s *floorMapService) Create(dbc dbctx.Context, in FloorMapInput) (*types.FloorMap, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}
	asset, err := s.resolveAsset(dbc, in.AssetID)
	if err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}

	row := &types.FloorMap{ID: uuid.New(), Name: in.Name}
	if asset != nil {
		row.AssetID = &asset.ID
		row.AssetRef = types.RefOf(*asset)
	}
	storageKey := MapStorageKey(row.ID)
	if in.ImagePath != "" {
		p, err := s.build(dbc.Ctx, in.ImagePath, storageKey)
		if err != nil {
			return nil, err
		}
		applyPyramid(row, p)
	}

	created, err := s.repos.FloorMaps.Create(dbc, row)
	if err != nil {
		if in.ImagePath != "" {
			s.dropTiles(dbc.Ctx, storageKey)
		}
		return nil, apierr.Wrap(err, "create map")
	}
	if asset != nil {
		err = s.engine.Track(dbc, types.KindFloorMap, created.ID, "create", func(dbc dbctx.Context) error {
			return s.engine.ReconcileParentChange(dbc, s.assetRel, nil, created.AssetID, created.Summary())
		})
		if err != nil {
			return nil, err
		}
	}
	s.log.Info("map created", "map_id", created.ID, "max_zoom", created.MaxZoom)
	return created, nil
}

func (s *floorMapService) Update(dbc dbctx.Context, id uuid.UUID, in FloorMapInput) (*types.FloorMap, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindFloorMap, id)
	if err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}
	defer unlock()

	prev, err := s.Get(dbc, id)
	if err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}
	asset, err := s.resolveAsset(dbc, in.AssetID)
	if err != nil {
		s.discardUpload(in.ImagePath)
		return nil, err
	}

	updates := map[string]interface{}{"name": in.Name, "asset_id": nil, "asset_ref": nil}
	if asset != nil {
		updates["asset_id"] = asset.ID
		updates["asset_ref"] = types.RefOf(*asset)
	}

	var stale []string
	if in.ImagePath != "" {
		storageKey := MapStorageKey(id)
		before, err := s.store.List(dbc.Ctx, storageKey+"/")
		if err != nil {
			s.discardUpload(in.ImagePath)
			return nil, apierr.Internal(err)
		}
		p, err := s.build(dbc.Ctx, in.ImagePath, storageKey)
		if err != nil {
			return nil, err
		}
		updates["path"] = p.Path
		updates["width"] = p.Width
		updates["height"] = p.Height
		updates["max_zoom"] = p.MaxZoom
		stale = staleKeys(before, p.Keys)
	}

	row, err := s.repos.FloorMaps.UpdateFields(dbc, id, updates)
	if err != nil {
		return nil, apierr.Wrap(err, "update map")
	}
	err = s.engine.Track(dbc, types.KindFloorMap, id, "update", func(dbc dbctx.Context) error {
		return moveAndRefresh(dbc, s.engine, s.assetRel, prev.AssetID, row.AssetID, row.Summary())
	})
	if err != nil {
		return nil, err
	}
	for _, key := range stale {
		if err := s.store.Delete(dbc.Ctx, key); err != nil && !errors.Is(err, tilestore.ErrNotFound) {
			s.log.Warn("failed to delete stale tile", "map_id", id, "key", key, "error", err)
		}
	}
	return row, nil
}

func (s *floorMapService) SetRatio(dbc dbctx.Context, id uuid.UUID, ratio float64) (*types.FloorMap, error) {
	if ratio <= 0 {
		return nil, apierr.Validation(errors.New("ratio must be greater than 0"))
	}
	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	row, err := s.repos.FloorMaps.UpdateFields(dbc, id, map[string]interface{}{"ratio": ratio})
	if err != nil {
		return nil, apierr.Wrap(err, "set map ratio")
	}
	return row, nil
}

func (s *floorMapService) Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error) {
	res, err := s.engine.Delete(dbc, types.KindFloorMap, id)
	if err != nil {
		return nil, err
	}
	s.dropTiles(dbc.Ctx, MapStorageKey(id))
	return res, nil
}

func (s *floorMapService) ListChokePoints(dbc dbctx.Context, mapID uuid.UUID) ([]*types.ChokePoint, error) {
	if _, err := s.Get(dbc, mapID); err != nil {
		return nil, err
	}
	rows, err := s.repos.ChokePoints.ListByMap(dbc, mapID)
	if err != nil {
		return nil, apierr.Wrap(err, "list map chokePoints")
	}
	return rows, nil
}

func (s *floorMapService) UpdateChokePointPosition(dbc dbctx.Context, mapID, chokePointID uuid.UUID, x, y float64) (*types.ChokePoint, error) {
	if _, err := s.Get(dbc, mapID); err != nil {
		return nil, err
	}
	cp, err := s.chokePoints.Get(dbc, chokePointID)
	if err != nil {
		return nil, err
	}
	if cp.MapID == nil || *cp.MapID != mapID {
		return nil, apierr.NotFound("chokePoint %s is not on map %s", chokePointID, mapID)
	}
	return s.chokePoints.SetPosition(dbc, chokePointID, x, y)
}

func (s *floorMapService) resolveAsset(dbc dbctx.Context, id *uuid.UUID) (*types.Summary, error) {
	if !present(id) {
		return nil, nil
	}
	asset, err := s.repos.Assets.SummaryByID(dbc, *id)
	if err != nil {
		return nil, apierr.Wrap(err, "load asset")
	}
	if asset == nil {
		return nil, apierr.NotFound("asset %s not found", *id)
	}
	return asset, nil
}

func (s *floorMapService) build(ctx context.Context, imagePath, storageKey string) (*tiles.Pyramid, error) {
	p, err := s.builder.BuildPyramid(ctx, imagePath, storageKey)
	if errors.Is(err, tiles.ErrUnprocessableImage) {
		return nil, apierr.New(http.StatusUnprocessableEntity, apierr.CodeUnprocessableEntity, err)
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return p, nil
}

func (s *floorMapService) dropTiles(ctx context.Context, storageKey string) {
	if err := s.store.DeletePrefix(ctx, storageKey+"/"); err != nil {
		s.log.Warn("failed to delete map tiles", "storage_key", storageKey, "error", err)
	}
}

func (s *floorMapService) discardUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove upload", "path", path, "error", err)
	}
}

func applyPyramid(row *types.FloorMap, p *tiles.Pyramid) {
	row.Path = p.Path
	row.Width = p.Width
	row.Height = p.Height
	row.MaxZoom = p.MaxZoom
}

// staleKeys returns the keys of before that the new pyramid did not rewrite.
func staleKeys(before, written []string) []string {
	keep := make(map[string]struct{}, len(written))
	for _, k := range written {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range before {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

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

type ChokePointInput struct {
	Name       string `json:"name" validate:"required,max=128"`
	MacAddress string `json:"macAddress" validate:"required,max=64"`
}

type ChokePointService interface {
	List(dbc dbctx.Context) ([]*types.ChokePoint, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error)
	Create(dbc dbctx.Context, in ChokePointInput) (*types.ChokePoint, error)
	Update(dbc dbctx.Context, id uuid.UUID, in ChokePointInput) (*types.ChokePoint, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error)

	// SetMap places the chokePoint on a map at (x, y), moving it off any
	// previous map.
	SetMap(dbc dbctx.Context, id uuid.UUID, mapID *uuid.UUID, x, y float64) (*types.ChokePoint, error)
	// UnsetMap clears map, x and y in one write and pulls the chokePoint from
	// the map it was on.
	UnsetMap(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error)
	SetPosition(dbc dbctx.Context, id uuid.UUID, x, y float64) (*types.ChokePoint, error)
}

type chokePointService struct {
	log    *logger.Logger
	repos  repos.Set
	engine ConsistencyEngine
	mapRel *Relation
}

func NewChokePointService(log *logger.Logger, rs repos.Set, engine ConsistencyEngine) ChokePointService {
	return &chokePointService{
		log:    log.With("service", "ChokePointService"),
		repos:  rs,
		engine: engine,
		mapRel: engine.Relations().MustGet(RelationMapChokePoints),
	}
}

func normalizeChokePointInput(in ChokePointInput) ChokePointInput {
	in.Name = strings.TrimSpace(in.Name)
	in.MacAddress = strings.TrimSpace(in.MacAddress)
	return in
}

func (s *chokePointService) List(dbc dbctx.Context) ([]*types.ChokePoint, error) {
	rows, err := s.repos.ChokePoints.List(dbc)
	if err != nil {
		return nil, apierr.Wrap(err, "list chokePoints")
	}
	return rows, nil
}

func (s *chokePointService) Get(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error) {
	row, err := s.repos.ChokePoints.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load chokePoint")
	}
	if row == nil {
		return nil, apierr.NotFound("chokePoint %s not found", id)
	}
	return row, nil
}

func (s *chokePointService) Create(dbc dbctx.Context, in ChokePointInput) (*types.ChokePoint, error) {
	in = normalizeChokePointInput(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	row, err := s.repos.ChokePoints.Create(dbc, &types.ChokePoint{Name: in.Name, MacAddress: in.MacAddress})
	if err != nil {
		return nil, apierr.Wrap(err, "create chokePoint")
	}
	s.log.Info("chokePoint created", "choke_point_id", row.ID, "mac_address", row.MacAddress)
	return row, nil
}

func (s *chokePointService) Update(dbc dbctx.Context, id uuid.UUID, in ChokePointInput) (*types.ChokePoint, error) {
	in = normalizeChokePointInput(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindChokePoint, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.Get(dbc, id); err != nil {
		return nil, err
	}
	row, err := s.repos.ChokePoints.UpdateFields(dbc, id, map[string]interface{}{
		"name":        in.Name,
		"mac_address": in.MacAddress,
	})
	if err != nil {
		return nil, apierr.Wrap(err, "update chokePoint")
	}
	err = s.engine.Track(dbc, types.KindChokePoint, id, "update", func(dbc dbctx.Context) error {
		return s.engine.Refresh(dbc, types.KindChokePoint, id)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *chokePointService) Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error) {
	return s.engine.Delete(dbc, types.KindChokePoint, id)
}

func (s *chokePointService) SetMap(dbc dbctx.Context, id uuid.UUID, mapID *uuid.UUID, x, y float64) (*types.ChokePoint, error) {
	if !present(mapID) || x == 0 || y == 0 {
		return nil, apierr.MissingParameter("mapId, x and y are required")
	}
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindChokePoint, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	m, err := s.loadMap(dbc, *mapID)
	if err != nil {
		return nil, err
	}
	if !m.Contains(x, y) {
		return nil, outOfBounds(m, x, y)
	}
	row, err := s.repos.ChokePoints.SetMapPosition(dbc, id, m.Summary(), x, y)
	if err != nil {
		return nil, apierr.Wrap(err, "place chokePoint")
	}
	err = s.engine.Track(dbc, types.KindChokePoint, id, "reparent", func(dbc dbctx.Context) error {
		return moveAndRefresh(dbc, s.engine, s.mapRel, prev.MapID, row.MapID, row.Summary())
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("chokePoint placed", "choke_point_id", id, "map_id", m.ID)
	return row, nil
}

func (s *chokePointService) UnsetMap(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error) {
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindChokePoint, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if !present(prev.MapID) {
		return prev, nil
	}
	row, err := s.repos.ChokePoints.ClearMap(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "unset chokePoint map")
	}
	err = s.engine.Track(dbc, types.KindChokePoint, id, "detach", func(dbc dbctx.Context) error {
		return moveAndRefresh(dbc, s.engine, s.mapRel, prev.MapID, nil, row.Summary())
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *chokePointService) SetPosition(dbc dbctx.Context, id uuid.UUID, x, y float64) (*types.ChokePoint, error) {
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindChokePoint, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if !present(prev.MapID) {
		return nil, apierr.Unprocessable("chokePoint %s is not placed on a map", id)
	}
	m, err := s.loadMap(dbc, *prev.MapID)
	if err != nil {
		return nil, err
	}
	if !m.Contains(x, y) {
		return nil, outOfBounds(m, x, y)
	}
	row, err := s.repos.ChokePoints.UpdateFields(dbc, id, map[string]interface{}{"x": x, "y": y})
	if err != nil {
		return nil, apierr.Wrap(err, "move chokePoint")
	}
	err = s.engine.Track(dbc, types.KindChokePoint, id, "position", func(dbc dbctx.Context) error {
		return s.engine.Refresh(dbc, types.KindChokePoint, id)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *chokePointService) loadMap(dbc dbctx.Context, id uuid.UUID) (*types.FloorMap, error) {
	m, err := s.repos.FloorMaps.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load map")
	}
	if m == nil {
		return nil, apierr.NotFound("map %s not found", id)
	}
	return m, nil
}

func outOfBounds(m *types.FloorMap, x, y float64) error {
	return apierr.Unprocessable("position (%g, %g) is outside map %s (%dx%d)", x, y, m.ID, m.Width, m.Height)
}

package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type LocationInput struct {
	Name     string         `json:"name" validate:"required,max=128"`
	Position types.Position `json:"position"`
	AssetID  *uuid.UUID     `json:"assetId,omitempty"`
	// ChokePointIDs is the complete chokePoint set. Nil leaves the current
	// set untouched on update; an empty slice clears it.
	ChokePointIDs []uuid.UUID `json:"chokePointIds"`
}

type LocationService interface {
	List(dbc dbctx.Context) ([]*types.Location, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Location, error)
	Create(dbc dbctx.Context, in LocationInput) (*types.Location, error)
	Update(dbc dbctx.Context, id uuid.UUID, in LocationInput) (*types.Location, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error)
	ListChokePoints(dbc dbctx.Context, locationID uuid.UUID) ([]*types.ChokePoint, error)
}

type locationService struct {
	log      *logger.Logger
	repos    repos.Set
	engine   ConsistencyEngine
	assetRel *Relation
	cpRel    *Relation
}

func NewLocationService(log *logger.Logger, rs repos.Set, engine ConsistencyEngine) LocationService {
	return &locationService{
		log:      log.With("service", "LocationService"),
		repos:    rs,
		engine:   engine,
		assetRel: engine.Relations().MustGet(RelationAssetLocations),
		cpRel:    engine.Relations().MustGet(RelationLocationChokePoints),
	}
}

func validateLocationInput(in *LocationInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(*in); err != nil {
		return err
	}
	if in.Position.Lat < -90 || in.Position.Lat > 90 {
		return apierr.Validation(errors.New("position.lat must be within [-90, 90]"))
	}
	if in.Position.Lng < -180 || in.Position.Lng > 180 {
		return apierr.Validation(errors.New("position.lng must be within [-180, 180]"))
	}
	return nil
}

func (s *locationService) List(dbc dbctx.Context) ([]*types.Location, error) {
	rows, err := s.repos.Locations.List(dbc)
	if err != nil {
		return nil, apierr.Wrap(err, "list locations")
	}
	return rows, nil
}

func (s *locationService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Location, error) {
	row, err := s.repos.Locations.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load location")
	}
	if row == nil {
		return nil, apierr.NotFound("location %s not found", id)
	}
	return row, nil
}

func (s *locationService) Create(dbc dbctx.Context, in LocationInput) (*types.Location, error) {
	if err := validateLocationInput(&in); err != nil {
		return nil, err
	}
	asset, err := s.resolveAsset(dbc, in.AssetID)
	if err != nil {
		return nil, err
	}
	cps, err := s.resolveChokePoints(dbc, in.ChokePointIDs)
	if err != nil {
		return nil, err
	}

	row := &types.Location{ID: uuid.New(), Name: in.Name, Position: in.Position}
	if asset != nil {
		row.AssetID = &asset.ID
		row.AssetRef = types.RefOf(*asset)
	}
	for _, cp := range cps {
		row.ChokePoints = append(row.ChokePoints, cp.Summary())
	}
	created, err := s.repos.Locations.Create(dbc, row)
	if err != nil {
		return nil, apierr.Wrap(err, "create location")
	}
	if asset == nil && len(cps) == 0 {
		return created, nil
	}

	err = s.engine.Track(dbc, types.KindLocation, created.ID, "create", func(dbc dbctx.Context) error {
		if err := s.engine.ReconcileParentChange(dbc, s.assetRel, nil, created.AssetID, created.Summary()); err != nil {
			return err
		}
		return s.claimChokePoints(dbc, created, cps)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("location created", "location_id", created.ID, "choke_points", len(cps))
	return created, nil
}

func (s *locationService) Update(dbc dbctx.Context, id uuid.UUID, in LocationInput) (*types.Location, error) {
	if err := validateLocationInput(&in); err != nil {
		return nil, err
	}
	unlock, err := s.engine.Lock(dbc.Ctx, types.KindLocation, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	asset, err := s.resolveAsset(dbc, in.AssetID)
	if err != nil {
		return nil, err
	}
	var cps []*types.ChokePoint
	if in.ChokePointIDs != nil {
		if cps, err = s.resolveChokePoints(dbc, in.ChokePointIDs); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"name":         in.Name,
		"position_lat": in.Position.Lat,
		"position_lng": in.Position.Lng,
		"asset_id":     nil,
		"asset_ref":    nil,
	}
	if asset != nil {
		updates["asset_id"] = asset.ID
		updates["asset_ref"] = types.RefOf(*asset)
	}
	row, err := s.repos.Locations.UpdateFields(dbc, id, updates)
	if err != nil {
		return nil, apierr.Wrap(err, "update location")
	}

	err = s.engine.Track(dbc, types.KindLocation, id, "update", func(dbc dbctx.Context) error {
		if err := moveAndRefresh(dbc, s.engine, s.assetRel, prev.AssetID, row.AssetID, row.Summary()); err != nil {
			return err
		}
		if in.ChokePointIDs == nil {
			return nil
		}
		return s.replaceChokePoints(dbc, row, cps)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(dbc, id)
}

func (s *locationService) Delete(dbc dbctx.Context, id uuid.UUID) (*DeleteResult, error) {
	return s.engine.Delete(dbc, types.KindLocation, id)
}

func (s *locationService) ListChokePoints(dbc dbctx.Context, locationID uuid.UUID) ([]*types.ChokePoint, error) {
	if _, err := s.Get(dbc, locationID); err != nil {
		return nil, err
	}
	rows, err := s.repos.ChokePoints.ListByLocation(dbc, locationID)
	if err != nil {
		return nil, apierr.Wrap(err, "list location chokePoints")
	}
	return rows, nil
}

// replaceChokePoints makes cps the location's complete chokePoint set.
func (s *locationService) replaceChokePoints(dbc dbctx.Context, loc *types.Location, cps []*types.ChokePoint) error {
	current, err := s.cpRel.Ref.ChildIDs(dbc, loc.ID)
	if err != nil {
		return err
	}
	keep := make(map[uuid.UUID]struct{}, len(cps))
	for _, cp := range cps {
		keep[cp.ID] = struct{}{}
	}
	var removed []uuid.UUID
	for _, cid := range current {
		if _, ok := keep[cid]; !ok {
			removed = append(removed, cid)
		}
	}
	if _, err := s.cpRel.Ref.SetMany(dbc, removed, nil); err != nil {
		return err
	}
	if err := s.claimChokePoints(dbc, loc, cps); err != nil {
		return err
	}
	summaries := make([]types.Summary, 0, len(cps))
	for _, cp := range cps {
		summaries = append(summaries, cp.Summary())
	}
	_, err = s.cpRel.Array.Replace(dbc, loc.ID, summaries)
	return err
}

// claimChokePoints points every chokePoint in cps at loc, pulling it from a
// location it was previously attached to.
func (s *locationService) claimChokePoints(dbc dbctx.Context, loc *types.Location, cps []*types.ChokePoint) error {
	if len(cps) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(cps))
	for _, cp := range cps {
		if present(cp.LocationID) && *cp.LocationID != loc.ID {
			if err := s.engine.ReconcileParentChange(dbc, s.cpRel, cp.LocationID, nil, cp.Summary()); err != nil {
				return err
			}
		}
		ids = append(ids, cp.ID)
	}
	summary := loc.Summary()
	_, err := s.cpRel.Ref.SetMany(dbc, ids, &summary)
	return err
}

func (s *locationService) resolveAsset(dbc dbctx.Context, id *uuid.UUID) (*types.Summary, error) {
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

// resolveChokePoints loads ids in input order, dropping repeats. Any unknown
// id fails the whole call.
func (s *locationService) resolveChokePoints(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ChokePoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.repos.ChokePoints.GetByIDs(dbc, ids)
	if err != nil {
		return nil, apierr.Wrap(err, "load chokePoints")
	}
	byID := make(map[uuid.UUID]*types.ChokePoint, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]*types.ChokePoint, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cp, ok := byID[id]
		if !ok {
			return nil, apierr.NotFound("chokePoint %s not found", id)
		}
		out = append(out, cp)
	}
	return out, nil
}

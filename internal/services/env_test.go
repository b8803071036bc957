package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	"github.com/yungbote/indoormap-backend/internal/data/repos/testutil"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
	"github.com/yungbote/indoormap-backend/internal/tiles"
)

// testEnv wires the full service graph over a private database. Names and
// macs are randomized so the shared Postgres handle can be used as well.
type testEnv struct {
	ctx    context.Context
	dbc    dbctx.Context
	db     *gorm.DB
	log    *logger.Logger
	rs     repos.Set
	engine ConsistencyEngine

	tiles       *tilestore.MemoryStore
	assets      AssetService
	maps        FloorMapService
	locations   LocationService
	chokePoints ChokePointService
	importer    ChokePointImporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	rs := repos.NewSet(db, log)
	engine := NewConsistencyEngine(log, rs, NewDefaultRelationRegistry(rs), NewMemoryLocker())
	store := tilestore.NewMemoryStore("/tiles")
	gen := tiles.NewGenerator(log, store, tiles.WithWorkers(2))

	cps := NewChokePointService(log, rs, engine)
	return &testEnv{
		ctx:         ctx,
		dbc:         dbctx.Context{Ctx: ctx},
		db:          db,
		log:         log,
		rs:          rs,
		engine:      engine,
		tiles:       store,
		assets:      NewAssetService(log, rs, engine),
		maps:        NewFloorMapService(log, rs, engine, gen, store, cps),
		locations:   NewLocationService(log, rs, engine),
		chokePoints: cps,
		importer:    NewChokePointImporter(log, rs, cps),
	}
}

func uniq(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func uniqMac() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (e *testEnv) asset(t *testing.T) *types.Asset {
	t.Helper()
	a, err := e.assets.Create(e.dbc, AssetInput{Name: uniq("Asset")})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return a
}

func (e *testEnv) floorMap(t *testing.T, assetID *uuid.UUID, w, h int) *types.FloorMap {
	t.Helper()
	m, err := e.maps.Create(e.dbc, FloorMapInput{Name: uniq("Map"), AssetID: assetID})
	if err != nil {
		t.Fatalf("create map: %v", err)
	}
	if w > 0 || h > 0 {
		// Dimensions normally come from the pyramid build.
		m, err = e.rs.FloorMaps.UpdateFields(e.dbc, m.ID, map[string]interface{}{"width": w, "height": h})
		if err != nil {
			t.Fatalf("set map size: %v", err)
		}
	}
	return m
}

func (e *testEnv) chokePoint(t *testing.T) *types.ChokePoint {
	t.Helper()
	cp, err := e.chokePoints.Create(e.dbc, ChokePointInput{Name: uniq("CP"), MacAddress: uniqMac()})
	if err != nil {
		t.Fatalf("create chokePoint: %v", err)
	}
	return cp
}

func (e *testEnv) location(t *testing.T, assetID *uuid.UUID, chokePointIDs ...uuid.UUID) *types.Location {
	t.Helper()
	l, err := e.locations.Create(e.dbc, LocationInput{
		Name:          uniq("Loc"),
		Position:      types.Position{Lat: 41.0, Lng: 29.0},
		AssetID:       assetID,
		ChokePointIDs: chokePointIDs,
	})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	return l
}

func mustList(t *testing.T, arr repos.SummaryArray, dbc dbctx.Context, parentID uuid.UUID) []types.Summary {
	t.Helper()
	list, err := arr.List(dbc, parentID)
	if err != nil {
		t.Fatalf("%s.%s List: %v", arr.Table(), arr.Column(), err)
	}
	return list
}

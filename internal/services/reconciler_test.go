package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
)

func TestReconcilerReplaysTasksAndSweeps(t *testing.T) {
	e := newTestEnv(t)
	asset := e.asset(t)
	m := e.floorMap(t, &asset.ID, 100, 100)
	cp := e.chokePoint(t)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}
	mapRel := e.engine.Relations().MustGet(RelationMapChokePoints)
	assetRel := e.engine.Relations().MustGet(RelationAssetMaps)

	// A rename whose fan-out never ran, recorded as a failed task.
	if _, err := e.rs.FloorMaps.UpdateFields(e.dbc, m.ID, map[string]interface{}{"name": uniq("Renamed")}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	task, err := e.rs.ReconcileTasks.Create(e.dbc, &types.ReconcileTask{Kind: types.KindFloorMap, EntityID: m.ID, Op: "update"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	// Drift no task describes: a copy of a chokePoint that is not on the map.
	if err := mapRel.Array.Push(e.dbc, m.ID, types.Summary{ID: uuid.New(), Name: "ghost"}); err != nil {
		t.Fatalf("Push ghost: %v", err)
	}

	rec := NewReconciler(e.log, e.rs, e.engine, ReconcilerConfig{})
	report, err := rec.RunOnce(e.ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Replayed < 1 || report.Fixes < 2 {
		t.Fatalf("report: want replayed>=1 fixes>=2 got=%+v", report)
	}

	cur, _ := e.maps.Get(e.dbc, m.ID)
	if list := mustList(t, assetRel.Array, e.dbc, asset.ID); len(list) != 1 || list[0].Name != cur.Name {
		t.Fatalf("asset.maps after replay: want name=%q got=%+v", cur.Name, list)
	}
	got, _ := e.chokePoints.Get(e.dbc, cp.ID)
	if got.MapRef == nil || got.MapRef.Name != cur.Name {
		t.Fatalf("chokePoint.map after replay: want name=%q got=%+v", cur.Name, got.MapRef)
	}
	if list := mustList(t, mapRel.Array, e.dbc, m.ID); len(list) != 1 || list[0].ID != cp.ID {
		t.Fatalf("map.chokePoints after sweep: want only %s got=%+v", cp.ID, list)
	}
	tasks, _ := e.rs.ReconcileTasks.ListPending(e.dbc, 1000)
	for _, p := range tasks {
		if p.ID == task.ID {
			t.Fatalf("replayed task should be completed")
		}
	}

	again, err := rec.RunOnce(e.ctx)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if again.Fixes != 0 {
		t.Fatalf("second run: want clean got=%+v", again)
	}
}

func TestReconcilerClearsOrphanRefs(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}
	// Delete the map row behind the engine's back.
	if _, err := e.rs.FloorMaps.DeleteByID(dbctx.Context{Ctx: e.ctx}, m.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	rec := NewReconciler(e.log, e.rs, e.engine, ReconcilerConfig{})
	report, err := rec.RunOnce(e.ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Fixes < 1 {
		t.Fatalf("report: want fixes>=1 got=%+v", report)
	}
	got, _ := e.chokePoints.Get(e.dbc, cp.ID)
	if got.MapID != nil || got.X != nil || got.Y != nil {
		t.Fatalf("orphaned chokePoint: want map,x,y cleared got map=%v x=%v y=%v", got.MapID, got.X, got.Y)
	}
}

// attachDuringDerive attaches a chokePoint from another goroutine the moment
// the sweep has read the map's children, before the rebuilt list is written.
type attachDuringDerive struct {
	repos.ParentRef
	mapID  uuid.UUID
	attach func()
	once   sync.Once
	done   chan struct{}
}

func (a *attachDuringDerive) ChildSummaries(dbc dbctx.Context, parentID uuid.UUID) ([]types.Summary, error) {
	list, err := a.ParentRef.ChildSummaries(dbc, parentID)
	if parentID == a.mapID {
		a.once.Do(func() {
			go func() {
				defer close(a.done)
				a.attach()
			}()
		})
	}
	return list, err
}

func TestReconcilerSweepKeepsConcurrentAttach(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)

	var attachErr error
	ref := &attachDuringDerive{
		ParentRef: e.rs.ChokePointMap,
		mapID:     m.ID,
		done:      make(chan struct{}),
		attach: func() {
			_, attachErr = e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5)
		},
	}
	swept := e.rs
	swept.ChokePointMap = ref
	engine := NewConsistencyEngine(e.log, swept, NewDefaultRelationRegistry(swept), NewMemoryLocker())

	if _, err := NewReconciler(e.log, swept, engine, ReconcilerConfig{}).RunOnce(e.ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	<-ref.done
	if attachErr != nil {
		t.Fatalf("SetMap: %v", attachErr)
	}

	got, _ := e.chokePoints.Get(e.dbc, cp.ID)
	if got.MapID == nil || *got.MapID != m.ID {
		t.Fatalf("chokePoint.map: want=%s got=%v", m.ID, got.MapID)
	}
	mapRel := e.engine.Relations().MustGet(RelationMapChokePoints)
	if list := mustList(t, mapRel.Array, e.dbc, m.ID); len(list) != 1 || list[0].ID != cp.ID {
		t.Fatalf("map.chokePoints after sweep: want [%s] got=%+v", cp.ID, list)
	}
}

package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
)

func TestSummaryMirrorOnRename(t *testing.T) {
	e := newTestEnv(t)
	asset := e.asset(t)
	m := e.floorMap(t, &asset.ID, 200, 100)

	maps := mustList(t, e.rs.AssetMaps, e.dbc, asset.ID)
	if len(maps) != 1 || !maps[0].Equal(m.Summary()) {
		t.Fatalf("asset.maps after create: want=[%+v] got=%+v", m.Summary(), maps)
	}

	renamed, err := e.maps.Update(e.dbc, m.ID, FloorMapInput{Name: uniq("Renamed"), AssetID: &asset.ID})
	if err != nil {
		t.Fatalf("Update map: %v", err)
	}
	maps = mustList(t, e.rs.AssetMaps, e.dbc, asset.ID)
	if len(maps) != 1 || maps[0].Name != renamed.Name {
		t.Fatalf("asset.maps after rename: want name=%q got=%+v", renamed.Name, maps)
	}

	newName := uniq("Site")
	if _, err := e.assets.Update(e.dbc, asset.ID, AssetInput{Name: newName}); err != nil {
		t.Fatalf("Update asset: %v", err)
	}
	got, err := e.maps.Get(e.dbc, m.ID)
	if err != nil {
		t.Fatalf("Get map: %v", err)
	}
	if got.AssetRef == nil || got.AssetRef.Name != newName {
		t.Fatalf("map.asset after asset rename: want name=%q got=%+v", newName, got.AssetRef)
	}
}

func TestReparentIsIdempotentAndMoves(t *testing.T) {
	e := newTestEnv(t)
	m1 := e.floorMap(t, nil, 500, 500)
	m2 := e.floorMap(t, nil, 500, 500)
	cp := e.chokePoint(t)

	for i := 0; i < 2; i++ {
		if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m1.ID, 10, 20); err != nil {
			t.Fatalf("SetMap #%d: %v", i+1, err)
		}
	}
	list := mustList(t, e.rs.FloorMapChokePoints, e.dbc, m1.ID)
	if len(list) != 1 || list[0].ID != cp.ID || *list[0].X != 10 || *list[0].Y != 20 {
		t.Fatalf("map1.chokePoints after repeated SetMap: want one entry at (10,20) got=%+v", list)
	}

	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m2.ID, 30, 40); err != nil {
		t.Fatalf("SetMap to map2: %v", err)
	}
	if list := mustList(t, e.rs.FloorMapChokePoints, e.dbc, m1.ID); len(list) != 0 {
		t.Fatalf("map1.chokePoints after move: want empty got=%+v", list)
	}
	list = mustList(t, e.rs.FloorMapChokePoints, e.dbc, m2.ID)
	if len(list) != 1 || *list[0].X != 30 {
		t.Fatalf("map2.chokePoints after move: want one entry at x=30 got=%+v", list)
	}
	got, _ := e.chokePoints.Get(e.dbc, cp.ID)
	if got.MapID == nil || *got.MapID != m2.ID || got.MapRef == nil || got.MapRef.Name != m2.Name {
		t.Fatalf("chokePoint.map after move: want %s got id=%v ref=%+v", m2.ID, got.MapID, got.MapRef)
	}
}

func TestSetMapValidation(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 1921, 1081)
	cp := e.chokePoint(t)

	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, nil, 1, 1); !apierr.HasCode(err, apierr.CodeMissingParameter) {
		t.Fatalf("SetMap without map: want missing_parameter got=%v", err)
	}
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 0, 5); !apierr.HasCode(err, apierr.CodeMissingParameter) {
		t.Fatalf("SetMap with x=0: want missing_parameter got=%v", err)
	}
	ghost := uuid.New()
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &ghost, 1, 1); !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("SetMap unknown map: want not_found got=%v", err)
	}
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 1922, 500); !apierr.HasCode(err, apierr.CodeUnprocessableEntity) {
		t.Fatalf("SetMap (1922,500): want unprocessable_entity got=%v", err)
	}
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 1920, 1080); err != nil {
		t.Fatalf("SetMap (1920,1080): %v", err)
	}
	if _, err := e.maps.UpdateChokePointPosition(e.dbc, m.ID, cp.ID, 1922, 500); !apierr.HasCode(err, apierr.CodeUnprocessableEntity) {
		t.Fatalf("UpdateChokePointPosition out of bounds: want unprocessable_entity got=%v", err)
	}
	moved, err := e.maps.UpdateChokePointPosition(e.dbc, m.ID, cp.ID, 100, 200)
	if err != nil {
		t.Fatalf("UpdateChokePointPosition: %v", err)
	}
	if *moved.X != 100 || *moved.Y != 200 {
		t.Fatalf("position: want=(100,200) got=(%v,%v)", *moved.X, *moved.Y)
	}
	other := e.floorMap(t, nil, 10, 10)
	if _, err := e.maps.UpdateChokePointPosition(e.dbc, other.ID, cp.ID, 1, 1); !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("UpdateChokePointPosition on foreign map: want not_found got=%v", err)
	}
}

func TestUnsetMapClearsPosition(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)
	loc := e.location(t, nil, cp.ID)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 6); err != nil {
		t.Fatalf("SetMap: %v", err)
	}

	got, err := e.chokePoints.UnsetMap(e.dbc, cp.ID)
	if err != nil {
		t.Fatalf("UnsetMap: %v", err)
	}
	if got.MapID != nil || got.MapRef != nil || got.X != nil || got.Y != nil {
		t.Fatalf("UnsetMap: want map,x,y cleared got map=%v ref=%+v x=%v y=%v", got.MapID, got.MapRef, got.X, got.Y)
	}
	if list := mustList(t, e.rs.FloorMapChokePoints, e.dbc, m.ID); len(list) != 0 {
		t.Fatalf("map.chokePoints after unset: want empty got=%+v", list)
	}
	// The location keeps the chokePoint, without a position.
	list := mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID)
	if len(list) != 1 || list[0].X != nil {
		t.Fatalf("location.chokePoints after unset: want one entry without x got=%+v", list)
	}
	if _, err := e.chokePoints.SetPosition(e.dbc, cp.ID, 1, 1); !apierr.HasCode(err, apierr.CodeUnprocessableEntity) {
		t.Fatalf("SetPosition without map: want unprocessable_entity got=%v", err)
	}
}

func TestDeletionGuard(t *testing.T) {
	e := newTestEnv(t)
	asset := e.asset(t)
	m := e.floorMap(t, &asset.ID, 100, 100)
	cp := e.chokePoint(t)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}

	if _, err := e.maps.Delete(e.dbc, m.ID); !apierr.HasCode(err, apierr.CodeHasDependents) {
		t.Fatalf("Delete map with chokePoints: want has_dependents got=%v", err)
	}
	if _, err := e.assets.Delete(e.dbc, asset.ID); !apierr.HasCode(err, apierr.CodeHasDependents) {
		t.Fatalf("Delete asset with maps: want has_dependents got=%v", err)
	}
	if _, err := e.maps.Get(e.dbc, m.ID); err != nil {
		t.Fatalf("map should survive a refused delete: %v", err)
	}
	if list := mustList(t, e.rs.FloorMapChokePoints, e.dbc, m.ID); len(list) != 1 {
		t.Fatalf("refused delete must not write: want 1 chokePoint got=%+v", list)
	}

	if _, err := e.chokePoints.UnsetMap(e.dbc, cp.ID); err != nil {
		t.Fatalf("UnsetMap: %v", err)
	}
	res, err := e.maps.Delete(e.dbc, m.ID)
	if err != nil {
		t.Fatalf("Delete map: %v", err)
	}
	if res.DeletedCount != 1 {
		t.Fatalf("DeletedCount: want=1 got=%d", res.DeletedCount)
	}
	if list := mustList(t, e.rs.AssetMaps, e.dbc, asset.ID); len(list) != 0 {
		t.Fatalf("asset.maps after map delete: want empty got=%+v", list)
	}
	if _, err := e.maps.Delete(e.dbc, m.ID); !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("Delete twice: want not_found got=%v", err)
	}
	if _, err := e.assets.Delete(e.dbc, asset.ID); err != nil {
		t.Fatalf("Delete emptied asset: %v", err)
	}
}

func TestDeleteChokePointPullsFromMapAndLocation(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)
	keep := e.chokePoint(t)
	loc := e.location(t, nil, cp.ID, keep.ID)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}

	if _, err := e.chokePoints.Delete(e.dbc, cp.ID); err != nil {
		t.Fatalf("Delete chokePoint: %v", err)
	}
	if list := mustList(t, e.rs.FloorMapChokePoints, e.dbc, m.ID); len(list) != 0 {
		t.Fatalf("map.chokePoints: want empty got=%+v", list)
	}
	list := mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID)
	if len(list) != 1 || list[0].ID != keep.ID {
		t.Fatalf("location.chokePoints: want only %s got=%+v", keep.ID, list)
	}
}

func TestChokePointUpdatePropagates(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)
	loc := e.location(t, nil, cp.ID)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}

	in := ChokePointInput{Name: uniq("Beacon"), MacAddress: uniqMac()}
	updated, err := e.chokePoints.Update(e.dbc, cp.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, list := range [][]types.Summary{
		mustList(t, e.rs.FloorMapChokePoints, e.dbc, m.ID),
		mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID),
	} {
		if len(list) != 1 || !list[0].Equal(updated.Summary()) {
			t.Fatalf("holder copy: want=%+v got=%+v", updated.Summary(), list)
		}
	}

	if _, err := e.chokePoints.Update(e.dbc, uuid.New(), in); !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("Update vanished chokePoint: want not_found got=%v", err)
	}
	other := e.chokePoint(t)
	if _, err := e.chokePoints.Update(e.dbc, other.ID, in); !apierr.HasCode(err, apierr.CodeDuplicateKey) {
		t.Fatalf("Update to taken mac: want duplicate_key got=%v", err)
	}
}

func TestReconcileParentChangeCases(t *testing.T) {
	e := newTestEnv(t)
	rel := e.engine.Relations().MustGet(RelationAssetMaps)
	a1 := e.asset(t)
	a2 := e.asset(t)
	child := types.Summary{ID: uuid.New(), Name: "m"}

	if err := e.engine.ReconcileParentChange(e.dbc, rel, nil, nil, child); err != nil {
		t.Fatalf("none -> none: %v", err)
	}
	if err := e.engine.ReconcileParentChange(e.dbc, rel, nil, &a1.ID, child); err != nil {
		t.Fatalf("none -> a1: %v", err)
	}
	child.Name = "m2"
	if err := e.engine.ReconcileParentChange(e.dbc, rel, &a1.ID, &a1.ID, child); err != nil {
		t.Fatalf("a1 -> a1: %v", err)
	}
	if list := mustList(t, rel.Array, e.dbc, a1.ID); len(list) != 1 || list[0].Name != "m2" {
		t.Fatalf("positional update: want name m2 got=%+v", list)
	}
	if err := e.engine.ReconcileParentChange(e.dbc, rel, &a1.ID, &a2.ID, child); err != nil {
		t.Fatalf("a1 -> a2: %v", err)
	}
	if list := mustList(t, rel.Array, e.dbc, a1.ID); len(list) != 0 {
		t.Fatalf("a1 after move: want empty got=%+v", list)
	}
	if err := e.engine.ReconcileParentChange(e.dbc, rel, &a2.ID, nil, child); err != nil {
		t.Fatalf("a2 -> none: %v", err)
	}
	if list := mustList(t, rel.Array, e.dbc, a2.ID); len(list) != 0 {
		t.Fatalf("a2 after detach: want empty got=%+v", list)
	}
	// Same parent with no entry is a no-op.
	if err := e.engine.ReconcileParentChange(e.dbc, rel, &a2.ID, &a2.ID, child); err != nil {
		t.Fatalf("a2 -> a2 absent: %v", err)
	}
	if list := mustList(t, rel.Array, e.dbc, a2.ID); len(list) != 0 {
		t.Fatalf("positional update of absent entry must not insert, got=%+v", list)
	}
}

func TestTrackFailureLeavesTask(t *testing.T) {
	e := newTestEnv(t)
	id := uuid.New()
	boom := errors.New("boom")

	err := e.engine.Track(e.dbc, types.KindFloorMap, id, "update", func(dbctx.Context) error { return boom })
	if !apierr.HasCode(err, apierr.CodeInternal) || !errors.Is(err, boom) {
		t.Fatalf("Track: want internal wrapping boom got=%v", err)
	}
	tasks, err := e.rs.ReconcileTasks.ListPending(e.dbc, 1000)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	var found *types.ReconcileTask
	for _, task := range tasks {
		if task.EntityID == id {
			found = task
		}
	}
	if found == nil || found.Status != types.ReconcileTaskFailed || found.Attempts != 1 {
		t.Fatalf("failed task: want status=failed attempts=1 got=%+v", found)
	}

	ok := uuid.New()
	if err := e.engine.Track(e.dbc, types.KindFloorMap, ok, "update", func(dbctx.Context) error { return nil }); err != nil {
		t.Fatalf("Track ok: %v", err)
	}
	tasks, _ = e.rs.ReconcileTasks.ListPending(e.dbc, 1000)
	for _, task := range tasks {
		if task.EntityID == ok {
			t.Fatalf("completed task should be removed, got=%+v", task)
		}
	}
}

func TestRepairRebuildsCopies(t *testing.T) {
	e := newTestEnv(t)
	m1 := e.floorMap(t, nil, 100, 100)
	m2 := e.floorMap(t, nil, 100, 100)
	cp := e.chokePoint(t)
	if _, err := e.chokePoints.SetMap(e.dbc, cp.ID, &m1.ID, 5, 5); err != nil {
		t.Fatalf("SetMap: %v", err)
	}
	rel := e.engine.Relations().MustGet(RelationMapChokePoints)

	// Simulate an interrupted move: a stray copy on m2, a stale one on m1.
	if err := rel.Array.Push(e.dbc, m2.ID, cp.Summary()); err != nil {
		t.Fatalf("Push stray: %v", err)
	}
	if _, err := rel.Array.Set(e.dbc, m1.ID, types.Summary{ID: cp.ID, Name: "stale"}); err != nil {
		t.Fatalf("Set stale: %v", err)
	}

	fixes, err := e.engine.Repair(e.dbc, types.KindChokePoint, cp.ID)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if fixes != 2 {
		t.Fatalf("Repair fixes: want=2 got=%d", fixes)
	}
	if list := mustList(t, rel.Array, e.dbc, m2.ID); len(list) != 0 {
		t.Fatalf("stray copy: want removed got=%+v", list)
	}
	cur, _ := e.chokePoints.Get(e.dbc, cp.ID)
	list := mustList(t, rel.Array, e.dbc, m1.ID)
	if len(list) != 1 || !list[0].Equal(cur.Summary()) {
		t.Fatalf("stale copy: want=%+v got=%+v", cur.Summary(), list)
	}

	again, err := e.engine.Repair(e.dbc, types.KindChokePoint, cp.ID)
	if err != nil || again != 0 {
		t.Fatalf("second Repair: want 0 fixes got=%d err=%v", again, err)
	}
}

func TestRepairDeletedEntity(t *testing.T) {
	e := newTestEnv(t)
	m := e.floorMap(t, nil, 100, 100)
	rel := e.engine.Relations().MustGet(RelationMapChokePoints)
	ghost := types.Summary{ID: uuid.New(), Name: "ghost"}
	if err := rel.Array.Push(e.dbc, m.ID, ghost); err != nil {
		t.Fatalf("Push: %v", err)
	}
	fixes, err := e.engine.Repair(e.dbc, types.KindChokePoint, ghost.ID)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if fixes != 1 {
		t.Fatalf("Repair fixes: want=1 got=%d", fixes)
	}
	if list := mustList(t, rel.Array, e.dbc, m.ID); len(list) != 0 {
		t.Fatalf("ghost copy: want removed got=%+v", list)
	}
}

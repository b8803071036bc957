package services

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
)

func TestLocationChokePointSet(t *testing.T) {
	e := newTestEnv(t)
	asset := e.asset(t)
	a, b, c := e.chokePoint(t), e.chokePoint(t), e.chokePoint(t)
	loc := e.location(t, &asset.ID, a.ID, b.ID)

	if list := mustList(t, e.rs.AssetLocations, e.dbc, asset.ID); len(list) != 1 || list[0].ID != loc.ID {
		t.Fatalf("asset.locations: want [%s] got=%+v", loc.ID, list)
	}
	if got := idsOf(mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID)); !sameIDs(got, a.ID, b.ID) {
		t.Fatalf("location.chokePoints after create: want {a,b} got=%v", got)
	}

	updated, err := e.locations.Update(e.dbc, loc.ID, LocationInput{
		Name:          loc.Name,
		Position:      loc.Position,
		AssetID:       &asset.ID,
		ChokePointIDs: []uuid.UUID{b.ID, c.ID},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := idsOf(updated.ChokePoints); !sameIDs(got, b.ID, c.ID) {
		t.Fatalf("location.chokePoints after update: want {b,c} got=%v", got)
	}
	removed, _ := e.chokePoints.Get(e.dbc, a.ID)
	if removed.LocationID != nil || removed.LocationRef != nil {
		t.Fatalf("removed chokePoint: want location cleared got id=%v ref=%+v", removed.LocationID, removed.LocationRef)
	}
	added, _ := e.chokePoints.Get(e.dbc, c.ID)
	if added.LocationID == nil || *added.LocationID != loc.ID || added.LocationRef.Name != loc.Name {
		t.Fatalf("added chokePoint: want location %s got id=%v ref=%+v", loc.ID, added.LocationID, added.LocationRef)
	}

	// Claiming b from another location pulls it from the first one.
	other := e.location(t, nil, b.ID)
	if got := idsOf(mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID)); !sameIDs(got, c.ID) {
		t.Fatalf("first location after b moved: want {c} got=%v", got)
	}
	moved, _ := e.chokePoints.Get(e.dbc, b.ID)
	if moved.LocationID == nil || *moved.LocationID != other.ID {
		t.Fatalf("moved chokePoint: want location %s got=%v", other.ID, moved.LocationID)
	}

	// Nil ids leave the set alone; moving the location off the asset pulls it.
	if _, err := e.locations.Update(e.dbc, loc.ID, LocationInput{Name: loc.Name, Position: loc.Position}); err != nil {
		t.Fatalf("Update without set: %v", err)
	}
	if got := idsOf(mustList(t, e.rs.LocationChokePoints, e.dbc, loc.ID)); !sameIDs(got, c.ID) {
		t.Fatalf("nil chokePointIds must keep the set, got=%v", got)
	}
	if list := mustList(t, e.rs.AssetLocations, e.dbc, asset.ID); len(list) != 0 {
		t.Fatalf("asset.locations after unassign: want empty got=%+v", list)
	}
}

func TestLocationValidation(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.locations.Create(e.dbc, LocationInput{Name: uniq("Loc"), ChokePointIDs: []uuid.UUID{uuid.New()}})
	if !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("unknown chokePoint id: want not_found got=%v", err)
	}
	_, err = e.locations.Create(e.dbc, LocationInput{Name: "  "})
	if !apierr.HasCode(err, apierr.CodeValidationFailure) {
		t.Fatalf("blank name: want validation_failure got=%v", err)
	}
	_, err = e.locations.Create(e.dbc, LocationInput{Name: uniq("Loc"), Position: types.Position{Lat: 91}})
	if !apierr.HasCode(err, apierr.CodeValidationFailure) {
		t.Fatalf("lat 91: want validation_failure got=%v", err)
	}
	ghost := uuid.New()
	_, err = e.locations.Create(e.dbc, LocationInput{Name: uniq("Loc"), AssetID: &ghost})
	if !apierr.HasCode(err, apierr.CodeNotFound) {
		t.Fatalf("unknown asset: want not_found got=%v", err)
	}
}

func TestLocationDeleteGuard(t *testing.T) {
	e := newTestEnv(t)
	asset := e.asset(t)
	cp := e.chokePoint(t)
	loc := e.location(t, &asset.ID, cp.ID)

	if _, err := e.locations.Delete(e.dbc, loc.ID); !apierr.HasCode(err, apierr.CodeHasDependents) {
		t.Fatalf("Delete location with chokePoints: want has_dependents got=%v", err)
	}
	if _, err := e.locations.Update(e.dbc, loc.ID, LocationInput{Name: loc.Name, AssetID: &asset.ID, ChokePointIDs: []uuid.UUID{}}); err != nil {
		t.Fatalf("clear set: %v", err)
	}
	if _, err := e.locations.Delete(e.dbc, loc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if list := mustList(t, e.rs.AssetLocations, e.dbc, asset.ID); len(list) != 0 {
		t.Fatalf("asset.locations after delete: want empty got=%+v", list)
	}
	if got, _ := e.assets.ListLocations(e.dbc, asset.ID); len(got) != 0 {
		t.Fatalf("ListLocations: want empty got=%d", len(got))
	}
}

func idsOf(list []types.Summary) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func sameIDs(got []uuid.UUID, want ...uuid.UUID) bool {
	if len(got) != len(want) {
		return false
	}
	set := make(map[uuid.UUID]int, len(want))
	for _, id := range want {
		set[id]++
	}
	for _, id := range got {
		if set[id] == 0 {
			return false
		}
		set[id]--
	}
	return true
}

package services

import (
	"fmt"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
)

const (
	RelationAssetMaps           = "asset_maps"
	RelationAssetLocations      = "asset_locations"
	RelationMapChokePoints      = "map_choke_points"
	RelationLocationChokePoints = "location_choke_points"
)

// Relation is one parent/child pairing whose summaries are mirrored on both
// sides: Array is the parent's embedded list of child summaries and Ref the
// child's reference to its parent.
type Relation struct {
	Name   string
	Parent types.Kind
	Child  types.Kind
	Array  repos.SummaryArray
	Ref    repos.ParentRef
}

func (r *Relation) String() string {
	return fmt.Sprintf("%s(%s.%s <-> %s.%s)", r.Name, r.Parent, r.Array.Column(), r.Child, r.Ref.Table())
}

// RelationRegistry is the adjacency list every engine operation walks.
type RelationRegistry struct {
	order  []*Relation
	byName map[string]*Relation
}

func NewRelationRegistry() *RelationRegistry {
	return &RelationRegistry{byName: map[string]*Relation{}}
}

// NewDefaultRelationRegistry registers the four relations of the spatial
// graph over the given repositories.
func NewDefaultRelationRegistry(rs repos.Set) *RelationRegistry {
	reg := NewRelationRegistry()
	for _, rel := range []Relation{
		{Name: RelationAssetMaps, Parent: types.KindAsset, Child: types.KindFloorMap, Array: rs.AssetMaps, Ref: rs.FloorMapAsset},
		{Name: RelationAssetLocations, Parent: types.KindAsset, Child: types.KindLocation, Array: rs.AssetLocations, Ref: rs.LocationAsset},
		{Name: RelationMapChokePoints, Parent: types.KindFloorMap, Child: types.KindChokePoint, Array: rs.FloorMapChokePoints, Ref: rs.ChokePointMap},
		{Name: RelationLocationChokePoints, Parent: types.KindLocation, Child: types.KindChokePoint, Array: rs.LocationChokePoints, Ref: rs.ChokePointLocation},
	} {
		if err := reg.Register(rel); err != nil {
			panic(err)
		}
	}
	return reg
}

func (r *RelationRegistry) Register(rel Relation) error {
	if rel.Name == "" {
		return fmt.Errorf("relation name required")
	}
	if rel.Array == nil || rel.Ref == nil {
		return fmt.Errorf("relation %s: array and ref accessors required", rel.Name)
	}
	if _, dup := r.byName[rel.Name]; dup {
		return fmt.Errorf("relation %s already registered", rel.Name)
	}
	stored := rel
	r.order = append(r.order, &stored)
	r.byName[rel.Name] = &stored
	return nil
}

func (r *RelationRegistry) Get(name string) (*Relation, bool) {
	rel, ok := r.byName[name]
	return rel, ok
}

func (r *RelationRegistry) MustGet(name string) *Relation {
	rel, ok := r.byName[name]
	if !ok {
		panic(fmt.Sprintf("relation %s not registered", name))
	}
	return rel
}

func (r *RelationRegistry) All() []*Relation {
	return append([]*Relation(nil), r.order...)
}

// AsChild lists relations in which kind is the child, in registration order.
func (r *RelationRegistry) AsChild(kind types.Kind) []*Relation {
	var out []*Relation
	for _, rel := range r.order {
		if rel.Child == kind {
			out = append(out, rel)
		}
	}
	return out
}

// AsParent lists relations in which kind is the parent, in registration order.
func (r *RelationRegistry) AsParent(kind types.Kind) []*Relation {
	var out []*Relation
	for _, rel := range r.order {
		if rel.Parent == kind {
			out = append(out, rel)
		}
	}
	return out
}

package domain

import "github.com/google/uuid"

// Kind names a primary entity collection.
type Kind string

const (
	KindAsset      Kind = "asset"
	KindFloorMap   Kind = "map"
	KindLocation   Kind = "location"
	KindChokePoint Kind = "chokePoint"
)

func (k Kind) String() string { return string(k) }

// Kinds lists every entity kind, parents before children.
func Kinds() []Kind {
	return []Kind{KindAsset, KindFloorMap, KindLocation, KindChokePoint}
}

// Summarizer is implemented by every entity that can be embedded elsewhere.
type Summarizer interface {
	EntityID() uuid.UUID
	Summary() Summary
}

// All returns the models managed by AutoMigrate.
func All() []any {
	return []any{
		&Asset{},
		&FloorMap{},
		&Location{},
		&ChokePoint{},
		&ReconcileTask{},
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FloorMap is a floor plan image cut into a tile pyramid.
type FloorMap struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string     `gorm:"column:name;not null;uniqueIndex:idx_floor_map_name" json:"name"`
	AssetID  *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	AssetRef *Summary   `gorm:"column:asset_ref" json:"asset,omitempty"`

	Path    string   `gorm:"column:path" json:"path,omitempty"`
	Width   int      `gorm:"column:width;not null;default:0" json:"width,omitempty"`
	Height  int      `gorm:"column:height;not null;default:0" json:"height,omitempty"`
	MaxZoom int      `gorm:"column:max_zoom;not null;default:0" json:"maxZoom"`
	Ratio   *float64 `gorm:"column:ratio" json:"ratio,omitempty"`

	ChokePoints Summaries `gorm:"column:choke_points" json:"chokePoints"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FloorMap) TableName() string { return "floor_map" }

func (m *FloorMap) EntityID() uuid.UUID { return m.ID }

func (m *FloorMap) Summary() Summary { return Summary{ID: m.ID, Name: m.Name} }

// Contains reports whether (x, y) lies on the map image, edges included.
// Maps without known dimensions contain nothing.
func (m *FloorMap) Contains(x, y float64) bool {
	if m.Width <= 0 || m.Height <= 0 {
		return false
	}
	return x >= 0 && y >= 0 && x <= float64(m.Width) && y <= float64(m.Height)
}

func (m *FloorMap) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	normalizeSummaries(&m.ChokePoints)
	return nil
}

func (m *FloorMap) AfterFind(tx *gorm.DB) error {
	normalizeRef(&m.AssetRef)
	normalizeSummaries(&m.ChokePoints)
	return nil
}

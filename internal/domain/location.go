package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Position struct {
	Lat float64 `gorm:"column:lat" json:"lat"`
	Lng float64 `gorm:"column:lng" json:"lng"`
}

type Location struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string     `gorm:"column:name;not null;uniqueIndex:idx_location_name" json:"name"`
	Position Position   `gorm:"embedded;embeddedPrefix:position_" json:"position"`
	AssetID  *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	AssetRef *Summary   `gorm:"column:asset_ref" json:"asset,omitempty"`

	ChokePoints Summaries `gorm:"column:choke_points" json:"chokePoints"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Location) TableName() string { return "location" }

func (l *Location) EntityID() uuid.UUID { return l.ID }

func (l *Location) Summary() Summary { return Summary{ID: l.ID, Name: l.Name} }

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	normalizeSummaries(&l.ChokePoints)
	return nil
}

func (l *Location) AfterFind(tx *gorm.DB) error {
	normalizeRef(&l.AssetRef)
	normalizeSummaries(&l.ChokePoints)
	return nil
}

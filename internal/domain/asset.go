package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Asset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_asset_name" json:"name"`
	Maps      Summaries `gorm:"column:maps" json:"maps"`
	Locations Summaries `gorm:"column:locations" json:"locations"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Asset) TableName() string { return "asset" }

func (a *Asset) EntityID() uuid.UUID { return a.ID }

func (a *Asset) Summary() Summary { return Summary{ID: a.ID, Name: a.Name} }

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	normalizeSummaries(&a.Maps)
	normalizeSummaries(&a.Locations)
	return nil
}

func (a *Asset) AfterFind(tx *gorm.DB) error {
	normalizeSummaries(&a.Maps)
	normalizeSummaries(&a.Locations)
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChokePoint is a beacon identified by its hardware address. X and Y are
// pixel coordinates on the attached map and exist only while MapRef does.
type ChokePoint struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null;uniqueIndex:idx_choke_point_name" json:"name"`
	MacAddress string    `gorm:"column:mac_address;not null;uniqueIndex:idx_choke_point_mac_address" json:"macAddress"`

	MapID       *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	MapRef      *Summary   `gorm:"column:map_ref" json:"map,omitempty"`
	LocationID  *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	LocationRef *Summary   `gorm:"column:location_ref" json:"location,omitempty"`

	X *float64 `gorm:"column:x" json:"x,omitempty"`
	Y *float64 `gorm:"column:y" json:"y,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ChokePoint) TableName() string { return "choke_point" }

func (c *ChokePoint) EntityID() uuid.UUID { return c.ID }

func (c *ChokePoint) Summary() Summary {
	return Summary{ID: c.ID, Name: c.Name, MacAddress: c.MacAddress, X: c.X, Y: c.Y}
}

func (c *ChokePoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *ChokePoint) AfterFind(tx *gorm.DB) error {
	normalizeRef(&c.MapRef)
	normalizeRef(&c.LocationRef)
	return nil
}

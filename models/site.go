package models

import (
	"time"

	"gorm.io/gorm"
)

// Site represents a batching plant location that owns orders
type Site struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Code      string         `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Address   string         `gorm:"size:500" json:"address"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Site model
func (Site) TableName() string {
	return "sites"
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Recipe is a concrete mix design that order lines refer to
type Recipe struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SiteID        uint           `gorm:"not null;index" json:"site_id"`
	Code          string         `gorm:"size:32;not null" json:"code"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	StrengthGrade string         `gorm:"size:16" json:"strength_grade"` // e.g. C30
	Slump         int            `json:"slump"`                          // mm
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Recipe model
func (Recipe) TableName() string {
	return "recipes"
}

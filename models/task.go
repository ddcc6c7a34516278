package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is a dispatch/delivery record created while an order is fulfilled.
// Tasks reference orders but are not owned by them.
type Task struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TaskNo    string         `gorm:"size:32;not null;index" json:"task_no"`
	OrderID   uint           `gorm:"not null;index" json:"order_id"`
	SiteID    uint           `gorm:"not null;index" json:"site_id"`
	VehicleID *uint          `gorm:"index" json:"vehicle_id"` // nullable until dispatched
	Volume    float64        `gorm:"not null;default:0" json:"volume"`
	Status    TaskStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

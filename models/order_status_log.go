package models

import (
	"time"

	"gorm.io/datatypes"
)

// OrderAction names the kind of change recorded in the audit trail
type OrderAction string

const (
	OrderActionCreated       OrderAction = "created"
	OrderActionUpdated       OrderAction = "updated"
	OrderActionStatusChanged OrderAction = "status_changed"
	OrderActionDeleted       OrderAction = "deleted"
)

// OrderStatusLog is an audit entry written after every order mutation
type OrderStatusLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OrderID    uint           `gorm:"not null;index" json:"order_id"`
	Action     OrderAction    `gorm:"type:varchar(20);not null" json:"action"`
	FromStatus OrderStatus    `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus   OrderStatus    `gorm:"type:varchar(20)" json:"to_status,omitempty"`
	Actor      string         `gorm:"size:128" json:"actor"`
	Snapshot   datatypes.JSON `json:"snapshot,omitempty"` // order as it was after the change
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the OrderStatusLog model
func (OrderStatusLog) TableName() string {
	return "order_status_logs"
}

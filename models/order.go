package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Lifecycle distinguishes live orders from soft-deleted ones
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleArchived Lifecycle = "archived"
)

// Order represents a customer request for ready-mix concrete at a plant site
type Order struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	OrderNo          string         `gorm:"size:32;not null;uniqueIndex:idx_orders_site_order_no" json:"order_no"` // unique per site
	SiteID           uint           `gorm:"not null;index;uniqueIndex:idx_orders_site_order_no" json:"site_id"`
	Site             *Site          `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	CustomerName     string         `gorm:"size:100;not null" json:"customer_name"`
	CustomerPhone    string         `gorm:"size:32" json:"customer_phone"`
	ProjectName      string         `gorm:"size:200" json:"project_name"`
	ConstructionSite string         `gorm:"size:500" json:"construction_site"` // delivery address
	DeliveryTime     time.Time      `gorm:"not null" json:"delivery_time"`
	TotalVolume      float64        `gorm:"not null;default:0;check:total_volume >= 0" json:"total_volume"` // m³
	TotalAmount      float64        `gorm:"not null;default:0;check:total_amount >= 0" json:"total_amount"`
	Status           OrderStatus    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Remarks          string         `gorm:"type:text" json:"remarks"`
	CreatedBy        string         `gorm:"size:128" json:"created_by"`
	Items            []OrderItem    `gorm:"foreignKey:OrderID" json:"items"`
	Lifecycle        Lifecycle      `gorm:"-" json:"lifecycle"` // computed from DeletedAt
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// AfterFind fills the computed lifecycle field
func (o *Order) AfterFind(tx *gorm.DB) error {
	o.Lifecycle = o.lifecycle()
	return nil
}

// AfterCreate marks freshly created orders as active
func (o *Order) AfterCreate(tx *gorm.DB) error {
	o.Lifecycle = o.lifecycle()
	return nil
}

func (o *Order) lifecycle() Lifecycle {
	if o.DeletedAt.Valid {
		return LifecycleArchived
	}
	return LifecycleActive
}

// OrderItem is one recipe line of an order
type OrderItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	RecipeID   uint      `gorm:"not null;index" json:"recipe_id"`
	Recipe     *Recipe   `gorm:"foreignKey:RecipeID" json:"recipe,omitempty"`
	Volume     float64   `gorm:"not null;check:volume >= 0" json:"volume"` // m³
	UnitPrice  float64   `gorm:"not null;check:unit_price >= 0" json:"unit_price"`
	TotalPrice float64   `gorm:"not null" json:"total_price"` // always volume × unit_price
	Remarks    string    `gorm:"type:text" json:"remarks"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeSave recomputes the line total so a caller-supplied value is never stored
func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	i.TotalPrice = LineTotal(i.Volume, i.UnitPrice)
	return nil
}

// LineTotal returns volume × unit price rounded to cents
func LineTotal(volume, unitPrice float64) float64 {
	return RoundAmount(volume * unitPrice)
}

// RoundAmount rounds a currency amount to two decimals
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

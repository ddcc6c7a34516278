package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "orders", Order{}.TableName())
	assert.Equal(t, "order_items", OrderItem{}.TableName())
	assert.Equal(t, "sites", Site{}.TableName())
	assert.Equal(t, "recipes", Recipe{}.TableName())
	assert.Equal(t, "tasks", Task{}.TableName())
	assert.Equal(t, "order_status_logs", OrderStatusLog{}.TableName())
}

func TestOrderItemBeforeSaveRecomputesTotal(t *testing.T) {
	item := OrderItem{Volume: 12.5, UnitPrice: 420, TotalPrice: 1}

	assert.NoError(t, item.BeforeSave(nil))
	assert.Equal(t, 5250.0, item.TotalPrice, "caller supplied total should be overwritten")
}

func TestLineTotalRoundsToCents(t *testing.T) {
	assert.Equal(t, 33.33, LineTotal(1, 33.333))
	assert.Equal(t, 0.0, LineTotal(0, 500))
}

func TestOrderLifecycle(t *testing.T) {
	order := Order{}
	assert.NoError(t, order.AfterFind(nil))
	assert.Equal(t, LifecycleActive, order.Lifecycle)

	order.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	assert.NoError(t, order.AfterFind(nil))
	assert.Equal(t, LifecycleArchived, order.Lifecycle)
}

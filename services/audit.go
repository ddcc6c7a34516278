package services

import (
	"context"
	"encoding/json"

	"github.com/batchplant/plant-api/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditRecorder writes the order audit trail.
// Writes are best effort: failures are logged and never returned to the caller.
type AuditRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditRecorder creates an audit recorder backed by db
func NewAuditRecorder(db *gorm.DB, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{db: db, logger: logger}
}

// Record stores an audit entry for order, snapshotting its current state
func (a *AuditRecorder) Record(ctx context.Context, action models.OrderAction, from, to models.OrderStatus, order *models.Order) {
	entry := models.OrderStatusLog{
		OrderID:    order.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Actor:      ActorFrom(ctx),
	}

	if snapshot, err := json.Marshal(order); err == nil {
		entry.Snapshot = datatypes.JSON(snapshot)
	} else {
		a.logger.Warn("Failed to encode order snapshot", zap.Uint("order_id", order.ID), zap.Error(err))
	}

	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		a.logger.Warn("Failed to write order audit entry",
			zap.Uint("order_id", order.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

// History returns the audit entries of an order, oldest first
func (a *AuditRecorder) History(ctx context.Context, orderID uint) ([]models.OrderStatusLog, error) {
	logs := []models.OrderStatusLog{}
	err := a.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/batchplant/plant-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orderNoPrefix  = "ORD"
	maxDailyOrders = 999
)

// ChangeStatus moves an order to the requested status if the transition table allows it.
// Only the status column is written. With the task guard enabled, cancelling is refused
// while a task of the order is active.
func (s *OrderService) ChangeStatus(ctx context.Context, id uint, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	var from models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			return notFoundOr(err, "order", id)
		}

		from = order.Status
		if err := ValidateTransition(from, to); err != nil {
			var terr *TransitionError
			if errors.As(err, &terr) {
				terr.OrderID = id
			}
			return err
		}
		if s.taskGuard && to == models.OrderStatusCancelled {
			if err := guardActiveTasks(tx, id, "cancelled"); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return fmt.Errorf("failed to update order status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return lostRace(tx, id)
		}

		if err := tx.Preload("Items", itemsInOrder).First(&order, id).Error; err != nil {
			return notFoundOr(err, "order", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.Uint("order_id", id),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	s.afterCommit(ctx, models.OrderActionStatusChanged, from, to, &order)

	return &order, nil
}

// DeleteOrder soft deletes an order. Orders in production cannot be deleted, nor, with the
// task guard enabled, orders with a task being produced or delivered. Tasks are left untouched.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint) (string, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			return notFoundOr(err, "order", id)
		}
		if order.Status == models.OrderStatusInProduction {
			return newError(ErrInvalidOperation, "order %d is %s and cannot be deleted", id, models.OrderStatusInProduction)
		}
		if s.taskGuard {
			if err := guardActiveTasks(tx, id, "deleted"); err != nil {
				return err
			}
		}

		res := tx.Where("status = ?", order.Status).Delete(&models.Order{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return newError(ErrConflict, "order %d was modified concurrently, reload and retry", id)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	order.Lifecycle = models.LifecycleArchived
	s.logger.Info("Order deleted", zap.Uint("order_id", id), zap.String("order_no", order.OrderNo))
	s.afterCommit(ctx, models.OrderActionDeleted, order.Status, order.Status, &order)

	return fmt.Sprintf("order %s deleted", order.OrderNo), nil
}

// guardActiveTasks rejects the operation when any live task of the order is active.
// The state filter runs in the database.
func guardActiveTasks(tx *gorm.DB, orderID uint, outcome string) error {
	var active int64
	err := tx.Model(&models.Task{}).
		Where("order_id = ? AND status IN ?", orderID, models.ActiveTaskStatuses()).
		Count(&active).Error
	if err != nil {
		return fmt.Errorf("failed to check order tasks: %w", err)
	}
	if active > 0 {
		return newError(ErrInvalidOperation, "order %d has %d active task(s) and cannot be %s", orderID, active, outcome)
	}
	return nil
}

// lostRace explains why a conditional update touched no row
func lostRace(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to reload order %d: %w", id, err)
	}
	if count == 0 {
		return newError(ErrNotFound, "order %d not found", id)
	}
	return newError(ErrConflict, "order %d was modified concurrently, reload and retry", id)
}

// nextOrderNo returns the next ORDyyyymmddNNN number for the site on the given day.
// Archived orders still hold their numbers.
func nextOrderNo(tx *gorm.DB, siteID uint, now time.Time) (string, error) {
	prefix := orderNoPrefix + now.Format("20060102")

	var existing []string
	err := tx.Unscoped().Model(&models.Order{}).
		Where("site_id = ? AND order_no LIKE ?", siteID, prefix+"%").
		Pluck("order_no", &existing).Error
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}

	last := 0
	for _, no := range existing {
		seq, err := strconv.Atoi(strings.TrimPrefix(no, prefix))
		if err == nil && seq > last {
			last = seq
		}
	}

	if last >= maxDailyOrders {
		return "", newError(ErrConflict, "site %d has used all %d order numbers for %s, supply order_no explicitly",
			siteID, maxDailyOrders, now.Format("2006-01-02"))
	}

	return fmt.Sprintf("%s%03d", prefix, last+1), nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/batchplant/plant-api/models"
)

// StatisticsFilter narrows GetStatistics. Both bounds are inclusive.
type StatisticsFilter struct {
	SiteID    *uint
	StartDate *time.Time
	EndDate   *time.Time
}

// Statistics summarises live orders
type Statistics struct {
	TotalOrders int64                        `json:"total_orders"`
	ByStatus    map[models.OrderStatus]int64 `json:"by_status"`
	TotalVolume float64                      `json:"total_volume"`
	TotalAmount float64                      `json:"total_amount"`
}

type statusTotals struct {
	Status     models.OrderStatus
	OrderCount int64
	Volume     float64
	Amount     float64
}

// GetStatistics counts live orders per status and sums their volume and amount.
// Every status appears in ByStatus, with zero when no order matches.
func (s *OrderService) GetStatistics(ctx context.Context, filter StatisticsFilter) (*Statistics, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, newError(ErrValidation, "start_date must not be after end_date")
	}

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.SiteID != nil {
		query = query.Where("site_id = ?", *filter.SiteID)
	}
	// Timestamps are stored in UTC
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", filter.EndDate.UTC())
	}

	var rows []statusTotals
	err := query.
		Select("status, COUNT(*) AS order_count, COALESCE(SUM(total_volume), 0) AS volume, COALESCE(SUM(total_amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	stats := &Statistics{ByStatus: make(map[models.OrderStatus]int64, len(models.OrderStatuses()))}
	for _, status := range models.OrderStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.OrderCount
		stats.TotalOrders += row.OrderCount
		stats.TotalVolume += row.Volume
		stats.TotalAmount += row.Amount
	}
	stats.TotalAmount = models.RoundAmount(stats.TotalAmount)

	return stats, nil
}

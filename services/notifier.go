package services

import (
	"context"
	"time"

	"github.com/batchplant/plant-api/models"
	"golang.org/x/sync/errgroup"
)

// EventType identifies what happened to an order
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderUpdated       EventType = "order.updated"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderDeleted       EventType = "order.deleted"
)

// OrderEvent is published after an order mutation has been committed
type OrderEvent struct {
	Type       EventType          `json:"type"`
	OrderID    uint               `json:"order_id"`
	OrderNo    string             `json:"order_no"`
	SiteID     uint               `json:"site_id"`
	FromStatus models.OrderStatus `json:"from_status,omitempty"`
	ToStatus   models.OrderStatus `json:"to_status"`
	Actor      string             `json:"actor"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Notifier delivers order events to dashboards and downstream consumers
type Notifier interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopNotifier discards every event
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, OrderEvent) error {
	return nil
}

func (NopNotifier) Close() error {
	return nil
}

// MultiNotifier publishes each event to every wrapped notifier concurrently
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier combines notifiers, collapsing the trivial cases
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	switch len(notifiers) {
	case 0:
		return NopNotifier{}
	case 1:
		return notifiers[0]
	}
	return &MultiNotifier{notifiers: notifiers}
}

// Publish sends the event to all notifiers and returns the first failure.
// One failing backend does not stop delivery to the others.
func (m *MultiNotifier) Publish(ctx context.Context, event OrderEvent) error {
	var g errgroup.Group
	for _, n := range m.notifiers {
		g.Go(func() error {
			return n.Publish(ctx, event)
		})
	}
	return g.Wait()
}

// Close closes every notifier and returns the first failure
func (m *MultiNotifier) Close() error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

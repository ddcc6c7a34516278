package models

import (
	"fmt"
	"slices"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusConfirmed    OrderStatus = "confirmed"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

// orderTransitions lists, for every status, the statuses an order may move to next.
// Terminal statuses map to an empty list.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:    {OrderStatusInProduction, OrderStatusCancelled},
	OrderStatusInProduction: {OrderStatusCompleted},
	OrderStatusCompleted:    {},
	OrderStatusCancelled:    {},
}

// OrderStatuses returns every order status in lifecycle order
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusInProduction,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

// ParseOrderStatus converts raw input into an OrderStatus, rejecting unknown values
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

// IsValid reports whether s is one of the known order statuses
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible from s
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// AllowedTransitions returns the statuses reachable from s in one step
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return slices.Clone(orderTransitions[s])
}

// CanTransitionTo reports whether an order in status s may move to next.
// Self transitions are never allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to OrderStatus) bool {
	return from.CanTransitionTo(to)
}

func (s OrderStatus) String() string {
	return string(s)
}

// TaskStatus is the fulfilment state of a delivery task
type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "pending"
	TaskStatusAssigned     TaskStatus = "assigned"
	TaskStatusInProgress   TaskStatus = "in_progress"
	TaskStatusLoading      TaskStatus = "loading"
	TaskStatusTransporting TaskStatus = "transporting"
	TaskStatusUnloading    TaskStatus = "unloading"
	TaskStatusCompleted    TaskStatus = "completed"
)

// ActiveTaskStatuses are the task states in which concrete is being produced or delivered
func ActiveTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusInProgress,
		TaskStatusLoading,
		TaskStatusTransporting,
		TaskStatusUnloading,
	}
}

// IsActive reports whether the task is currently being worked on
func (s TaskStatus) IsActive() bool {
	return slices.Contains(ActiveTaskStatuses(), s)
}

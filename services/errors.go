package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/batchplant/plant-api/models"
	"gorm.io/gorm"
)

// Error kinds returned by the order services. Match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrValidation        = errors.New("validation failed")
)

// Error is a business failure with a message meant for API clients
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a status change that is not in the transition table
type TransitionError struct {
	OrderID uint
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *TransitionError) Error() string {
	var b strings.Builder
	if e.OrderID != 0 {
		fmt.Fprintf(&b, "order %d: ", e.OrderID)
	}
	fmt.Fprintf(&b, "cannot change status from %s to %s", e.From, e.To)

	allowed := e.From.AllowedTransitions()
	if len(allowed) == 0 {
		fmt.Fprintf(&b, " (%s is a terminal status)", e.From)
		return b.String()
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	fmt.Fprintf(&b, " (allowed: %s)", strings.Join(names, ", "))
	return b.String()
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidateTransition checks a requested status change against the transition table.
// It never touches storage.
func ValidateTransition(from, to models.OrderStatus) error {
	if !to.IsValid() {
		return newError(ErrValidation, "unknown order status %q", to)
	}
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// notFoundOr converts gorm.ErrRecordNotFound into a NotFound error for the named entity
func notFoundOr(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(ErrNotFound, "%s %d not found", entity, id)
	}
	return fmt.Errorf("failed to load %s %d: %w", entity, id, err)
}

// translateWriteError maps constraint violations raised by the database
func translateWriteError(err error, action string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newError(ErrConflict, "failed to %s: order number already exists for this site", action)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return newError(ErrNotFound, "failed to %s: referenced record does not exist", action)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return newError(ErrValidation, "failed to %s: %v", action, err)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}

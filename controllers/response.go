package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/batchplant/plant-api/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// FieldError describes one invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondBindingError reports a request that failed to bind, with per-field details when available
func respondBindingError(c *gin.Context, err error) {
	var details any = err.Error()

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(fieldErr),
				Message: validationMessage(fieldErr),
			})
		}
		details = fields
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": details,
		},
	})
}

// respondServiceError maps an order service failure to the HTTP error envelope
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(c, http.StatusBadRequest, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, services.ErrInvalidOperation):
		respondError(c, http.StatusBadRequest, "INVALID_OPERATION", err.Error())
	case errors.Is(err, services.ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		logger.Error("Order request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to process order request")
	}
}

// useJSONFieldNames makes validation errors report fields by their JSON names
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				name, _, _ = strings.Cut(field.Tag.Get("form"), ",")
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
}

var jsonNamesOnce sync.Once

// fieldPath drops the request type from "CreateOrderRequest.items[0].volume"
func fieldPath(fieldErr validator.FieldError) string {
	ns := fieldErr.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validationMessage(fieldErr validator.FieldError) string {
	field := fieldPath(fieldErr)
	switch fieldErr.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + fieldErr.Param()
	case "gte":
		return field + " must be at least " + fieldErr.Param()
	case "min":
		return field + " must be at least " + fieldErr.Param()
	case "max":
		return field + " must be at most " + fieldErr.Param()
	default:
		return field + " is invalid"
	}
}

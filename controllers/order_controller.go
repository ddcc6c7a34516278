package controllers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/batchplant/plant-api/middleware"
	"github.com/batchplant/plant-api/models"
	"github.com/batchplant/plant-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// OrderController serves the order endpoints on top of the order service
type OrderController struct {
	orders *services.OrderService
	logger *zap.Logger
}

// NewOrderController creates an order controller
func NewOrderController(orders *services.OrderService, logger *zap.Logger) *OrderController {
	useJSONFieldNames()
	return &OrderController{orders: orders, logger: logger}
}

// OrderItemRequest is one line of an order request
type OrderItemRequest struct {
	RecipeID  uint    `json:"recipe_id" binding:"required"`
	Volume    float64 `json:"volume" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"gte=0"`
	Remarks   string  `json:"remarks"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	SiteID           uint               `json:"site_id" binding:"required"`
	OrderNo          string             `json:"order_no" binding:"max=32"`
	CustomerName     string             `json:"customer_name" binding:"required,max=100"`
	CustomerPhone    string             `json:"customer_phone" binding:"max=32"`
	ProjectName      string             `json:"project_name" binding:"max=200"`
	ConstructionSite string             `json:"construction_site" binding:"max=500"`
	DeliveryTime     time.Time          `json:"delivery_time" binding:"required"`
	TotalVolume      float64            `json:"total_volume" binding:"gte=0"`
	TotalAmount      float64            `json:"total_amount" binding:"gte=0"`
	Remarks          string             `json:"remarks"`
	Items            []OrderItemRequest `json:"items" binding:"dive"`
}

// UpdateOrderRequest represents a partial order update; omitted fields are kept
type UpdateOrderRequest struct {
	OrderNo          *string             `json:"order_no" binding:"omitempty,min=1,max=32"`
	CustomerName     *string             `json:"customer_name" binding:"omitempty,min=1,max=100"`
	CustomerPhone    *string             `json:"customer_phone" binding:"omitempty,max=32"`
	ProjectName      *string             `json:"project_name" binding:"omitempty,max=200"`
	ConstructionSite *string             `json:"construction_site" binding:"omitempty,max=500"`
	DeliveryTime     *time.Time          `json:"delivery_time"`
	TotalVolume      *float64            `json:"total_volume" binding:"omitempty,gte=0"`
	TotalAmount      *float64            `json:"total_amount" binding:"omitempty,gte=0"`
	Remarks          *string             `json:"remarks"`
	Items            *[]OrderItemRequest `json:"items" binding:"omitempty,dive"`
}

// ChangeStatusRequest represents the request body for a status change
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListOrdersQuery holds the query parameters of GET /orders
type ListOrdersQuery struct {
	SiteID   *uint  `form:"site_id"`
	Status   string `form:"status"`
	Customer string `form:"customer"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// StatisticsQuery holds the query parameters of GET /orders/statistics
type StatisticsQuery struct {
	SiteID    *uint  `form:"site_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// CreateOrder handles POST /api/v1/orders - creates a pending order with its items
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := oc.orders.CreateOrder(requestContext(c), services.CreateOrderInput{
		SiteID:           req.SiteID,
		OrderNo:          req.OrderNo,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		ProjectName:      req.ProjectName,
		ConstructionSite: req.ConstructionSite,
		DeliveryTime:     req.DeliveryTime,
		TotalVolume:      req.TotalVolume,
		TotalAmount:      req.TotalAmount,
		Remarks:          req.Remarks,
		Items:            itemInputs(req.Items),
	})
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - lists live orders, newest first
func (oc *OrderController) ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	filter := services.OrderFilter{
		SiteID:   query.SiteID,
		Customer: query.Customer,
		Page:     query.Page,
		Limit:    query.Limit,
	}
	if query.Status != "" {
		status, err := models.ParseOrderStatus(query.Status)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		filter.Status = &status
	}
	filter.Normalize()

	orders, total, err := oc.orders.ListOrders(requestContext(c), filter)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"pagination": gin.H{
			"page":       filter.Page,
			"limit":      filter.Limit,
			"total":      total,
			"totalPages": int(math.Ceil(float64(total) / float64(filter.Limit))),
		},
	})
}

// GetOrder handles GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := oc.orders.GetOrder(requestContext(c), id)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrder handles PUT /api/v1/orders/:id - partial update of a non-terminal order
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Completed and cancelled orders reject any payload, well-formed or not
		if mutableErr := oc.orders.EnsureMutable(requestContext(c), id); mutableErr != nil {
			respondServiceError(c, oc.logger, mutableErr)
			return
		}
		respondBindingError(c, err)
		return
	}

	in := services.UpdateOrderInput{
		OrderNo:          req.OrderNo,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		ProjectName:      req.ProjectName,
		ConstructionSite: req.ConstructionSite,
		DeliveryTime:     req.DeliveryTime,
		TotalVolume:      req.TotalVolume,
		TotalAmount:      req.TotalAmount,
		Remarks:          req.Remarks,
	}
	if req.Items != nil {
		items := itemInputs(*req.Items)
		in.Items = &items
	}

	order, err := oc.orders.UpdateOrder(requestContext(c), id, in)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// ChangeStatus handles PATCH /api/v1/orders/:id/status
func (oc *OrderController) ChangeStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	order, err := oc.orders.ChangeStatus(requestContext(c), id, status)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// DeleteOrder handles DELETE /api/v1/orders/:id - archives the order
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	message, err := oc.orders.DeleteOrder(requestContext(c), id)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// OrderHistory handles GET /api/v1/orders/:id/history
func (oc *OrderController) OrderHistory(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	history, err := oc.orders.OrderHistory(requestContext(c), id)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history,
	})
}

// GetStatistics handles GET /api/v1/orders/statistics
func (oc *OrderController) GetStatistics(c *gin.Context) {
	var query StatisticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	filter := services.StatisticsFilter{SiteID: query.SiteID}
	if query.StartDate != "" {
		start, err := parseDateParam(query.StartDate, false)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "start_date must be YYYY-MM-DD or RFC3339")
			return
		}
		filter.StartDate = &start
	}
	if query.EndDate != "" {
		end, err := parseDateParam(query.EndDate, true)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "end_date must be YYYY-MM-DD or RFC3339")
			return
		}
		filter.EndDate = &end
	}

	stats, err := oc.orders.GetStatistics(requestContext(c), filter)
	if err != nil {
		respondServiceError(c, oc.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// parseDateParam accepts RFC3339 timestamps or plain dates in UTC.
// A plain end date covers the whole day.
func parseDateParam(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

// orderID parses the :id path parameter, writing the error response when it is invalid
func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Order id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// requestContext carries the authenticated caller into the service layer
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if userID, err := middleware.GetUserID(c); err == nil {
		ctx = services.WithActor(ctx, userID)
	}
	return ctx
}

func itemInputs(items []OrderItemRequest) []services.OrderItemInput {
	inputs := make([]services.OrderItemInput, len(items))
	for i, item := range items {
		inputs[i] = services.OrderItemInput{
			RecipeID:  item.RecipeID,
			Volume:    item.Volume,
			UnitPrice: item.UnitPrice,
			Remarks:   item.Remarks,
		}
	}
	return inputs
}

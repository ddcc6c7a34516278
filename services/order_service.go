package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/batchplant/plant-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// OrderService owns the order lifecycle: creation, updates, status changes,
// soft deletion and statistics.
type OrderService struct {
	db            *gorm.DB
	logger        *zap.Logger
	notifier      Notifier
	audit         *AuditRecorder
	now           func() time.Time
	notifyTimeout time.Duration
	taskGuard     bool
}

// Option configures an OrderService
type Option func(*OrderService)

// NewOrderService creates an order service on top of db
func NewOrderService(db *gorm.DB, opts ...Option) *OrderService {
	s := &OrderService{
		db:            db,
		logger:        zap.NewNop(),
		notifier:      NopNotifier{},
		now:           time.Now,
		notifyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = NewAuditRecorder(db, s.logger)

	return s
}

// WithLogger sets the logger used for best-effort side actions
func WithLogger(logger *zap.Logger) Option {
	return func(s *OrderService) {
		s.logger = logger
	}
}

// WithNotifier sets where committed order events are published
func WithNotifier(notifier Notifier) Option {
	return func(s *OrderService) {
		s.notifier = notifier
	}
}

// WithClock overrides the time source used for order numbers
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		s.now = now
	}
}

// WithNotifyTimeout bounds how long event publishing may take
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		s.notifyTimeout = d
	}
}

// WithTaskGuard refuses to cancel or delete an order while one of its tasks is
// in production or on the road
func WithTaskGuard(enabled bool) Option {
	return func(s *OrderService) {
		s.taskGuard = enabled
	}
}

// OrderItemInput describes one line of an order
type OrderItemInput struct {
	RecipeID  uint
	Volume    float64
	UnitPrice float64
	Remarks   string
}

// CreateOrderInput holds the fields accepted when creating an order.
// OrderNo is generated when empty. Totals are derived from Items when any are given.
type CreateOrderInput struct {
	SiteID           uint
	OrderNo          string
	CustomerName     string
	CustomerPhone    string
	ProjectName      string
	ConstructionSite string
	DeliveryTime     time.Time
	TotalVolume      float64
	TotalAmount      float64
	Remarks          string
	Items            []OrderItemInput
}

// UpdateOrderInput is a partial update; nil fields are left unchanged.
// A non-nil Items replaces every existing line.
type UpdateOrderInput struct {
	OrderNo          *string
	CustomerName     *string
	CustomerPhone    *string
	ProjectName      *string
	ConstructionSite *string
	DeliveryTime     *time.Time
	TotalVolume      *float64
	TotalAmount      *float64
	Remarks          *string
	Items            *[]OrderItemInput
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	SiteID   *uint
	Status   *models.OrderStatus
	Customer string
	Page     int
	Limit    int
}

// Normalize applies pagination defaults and bounds
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
}

// CreateOrder persists a pending order together with its items.
// Either everything is stored or nothing is.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	order := models.Order{
		SiteID:           in.SiteID,
		OrderNo:          strings.TrimSpace(in.OrderNo),
		CustomerName:     strings.TrimSpace(in.CustomerName),
		CustomerPhone:    in.CustomerPhone,
		ProjectName:      in.ProjectName,
		ConstructionSite: in.ConstructionSite,
		DeliveryTime:     in.DeliveryTime,
		TotalVolume:      in.TotalVolume,
		TotalAmount:      models.RoundAmount(in.TotalAmount),
		Status:           models.OrderStatusPending,
		Remarks:          in.Remarks,
		CreatedBy:        ActorFrom(ctx),
	}
	if len(in.Items) > 0 {
		order.Items = buildItems(0, in.Items)
		order.TotalVolume, order.TotalAmount = sumItems(order.Items)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSite(tx, in.SiteID); err != nil {
			return err
		}
		if err := ensureRecipes(tx, in.Items); err != nil {
			return err
		}

		if order.OrderNo == "" {
			orderNo, err := nextOrderNo(tx, in.SiteID, s.now())
			if err != nil {
				return err
			}
			order.OrderNo = orderNo
		} else if err := ensureOrderNoFree(tx, in.SiteID, order.OrderNo, 0); err != nil {
			return err
		}

		if err := tx.Create(&order).Error; err != nil {
			return translateWriteError(err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_no", order.OrderNo),
		zap.Uint("site_id", order.SiteID),
	)
	s.afterCommit(ctx, models.OrderActionCreated, "", order.Status, &order)

	return &order, nil
}

// UpdateOrder applies a partial update. Completed and cancelled orders are immutable.
func (s *OrderService) UpdateOrder(ctx context.Context, id uint, in UpdateOrderInput) (*models.Order, error) {
	var updated models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			return notFoundOr(err, "order", id)
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}
		if err := validateUpdate(in); err != nil {
			return err
		}

		updates := map[string]any{}
		if in.OrderNo != nil {
			orderNo := strings.TrimSpace(*in.OrderNo)
			if orderNo != order.OrderNo {
				if err := ensureOrderNoFree(tx, order.SiteID, orderNo, order.ID); err != nil {
					return err
				}
				updates["order_no"] = orderNo
			}
		}
		if in.CustomerName != nil {
			updates["customer_name"] = strings.TrimSpace(*in.CustomerName)
		}
		if in.CustomerPhone != nil {
			updates["customer_phone"] = *in.CustomerPhone
		}
		if in.ProjectName != nil {
			updates["project_name"] = *in.ProjectName
		}
		if in.ConstructionSite != nil {
			updates["construction_site"] = *in.ConstructionSite
		}
		if in.DeliveryTime != nil {
			updates["delivery_time"] = *in.DeliveryTime
		}
		if in.Remarks != nil {
			updates["remarks"] = *in.Remarks
		}
		if in.TotalVolume != nil {
			updates["total_volume"] = *in.TotalVolume
		}
		if in.TotalAmount != nil {
			updates["total_amount"] = models.RoundAmount(*in.TotalAmount)
		}

		if in.Items != nil {
			if err := ensureRecipes(tx, *in.Items); err != nil {
				return err
			}
			if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
				return fmt.Errorf("failed to remove order items: %w", err)
			}
			items := buildItems(order.ID, *in.Items)
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return translateWriteError(err, "create order items")
				}
			}
			updates["total_volume"], updates["total_amount"] = sumItems(items)
		}

		if len(updates) > 0 {
			// The status guard makes a concurrent status change abort this update
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", order.ID, order.Status).
				Updates(updates)
			if res.Error != nil {
				return translateWriteError(res.Error, "update order")
			}
			if res.RowsAffected == 0 {
				return newError(ErrConflict, "order %d was modified concurrently, reload and retry", order.ID)
			}
		}

		return tx.Preload("Items", itemsInOrder).First(&updated, order.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, models.OrderActionUpdated, updated.Status, updated.Status, &updated)

	return &updated, nil
}

// EnsureMutable reports whether a live order still accepts updates
func (s *OrderService) EnsureMutable(ctx context.Context, id uint) error {
	var order models.Order
	if err := s.db.WithContext(ctx).Select("id", "status").First(&order, id).Error; err != nil {
		return notFoundOr(err, "order", id)
	}
	return ensureMutable(&order)
}

func ensureMutable(order *models.Order) error {
	if order.Status.IsTerminal() {
		return newError(ErrInvalidOperation, "order %d is %s and can no longer be modified", order.ID, order.Status)
	}
	return nil
}

// GetOrder returns a live order with its items
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", itemsInOrder).
		First(&order, id).Error
	if err != nil {
		return nil, notFoundOr(err, "order", id)
	}
	return &order, nil
}

// ListOrders returns one page of live orders, newest first, and the total match count
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	filter.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.SiteID != nil {
		query = query.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if customer := strings.TrimSpace(filter.Customer); customer != "" {
		query = query.Where("LOWER(customer_name) LIKE ?", "%"+strings.ToLower(customer)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := []models.Order{}
	err := query.
		Preload("Items", itemsInOrder).
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, total, nil
}

// OrderHistory returns the audit trail of an order, including archived ones
func (s *OrderService) OrderHistory(ctx context.Context, id uint) ([]models.OrderStatusLog, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Unscoped().Select("id").First(&order, id).Error; err != nil {
		return nil, notFoundOr(err, "order", id)
	}

	logs, err := s.audit.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	return logs, nil
}

// afterCommit runs the best-effort side actions of a committed mutation.
// They must outlive a client that hung up right after the commit.
func (s *OrderService) afterCommit(ctx context.Context, action models.OrderAction, from, to models.OrderStatus, order *models.Order) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	s.audit.Record(sideCtx, action, from, to, order)

	event := OrderEvent{
		Type:       eventTypes[action],
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		SiteID:     order.SiteID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      ActorFrom(ctx),
		OccurredAt: s.now().UTC(),
	}

	if err := s.notifier.Publish(sideCtx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.Uint("order_id", order.ID),
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
	}
}

var eventTypes = map[models.OrderAction]EventType{
	models.OrderActionCreated:       EventOrderCreated,
	models.OrderActionUpdated:       EventOrderUpdated,
	models.OrderActionStatusChanged: EventOrderStatusChanged,
	models.OrderActionDeleted:       EventOrderDeleted,
}

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}

func buildItems(orderID uint, inputs []OrderItemInput) []models.OrderItem {
	items := make([]models.OrderItem, len(inputs))
	for i, in := range inputs {
		items[i] = models.OrderItem{
			OrderID:    orderID,
			RecipeID:   in.RecipeID,
			Volume:     in.Volume,
			UnitPrice:  in.UnitPrice,
			TotalPrice: models.LineTotal(in.Volume, in.UnitPrice),
			Remarks:    in.Remarks,
		}
	}
	return items
}

func sumItems(items []models.OrderItem) (volume, amount float64) {
	for _, item := range items {
		volume += item.Volume
		amount += item.TotalPrice
	}
	return volume, models.RoundAmount(amount)
}

func ensureSite(tx *gorm.DB, siteID uint) error {
	var site models.Site
	if err := tx.Select("id").First(&site, siteID).Error; err != nil {
		return notFoundOr(err, "site", siteID)
	}
	return nil
}

// ensureRecipes fails with NotFound naming the first recipe id that does not exist
func ensureRecipes(tx *gorm.DB, items []OrderItemInput) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(items))
	seen := make(map[uint]bool, len(items))
	for _, item := range items {
		if !seen[item.RecipeID] {
			seen[item.RecipeID] = true
			ids = append(ids, item.RecipeID)
		}
	}

	var found []uint
	if err := tx.Model(&models.Recipe{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("failed to load recipes: %w", err)
	}

	existing := make(map[uint]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}
	for _, id := range ids {
		if !existing[id] {
			return newError(ErrNotFound, "recipe %d not found", id)
		}
	}
	return nil
}

// ensureOrderNoFree checks order number uniqueness within a site, archived orders included
func ensureOrderNoFree(tx *gorm.DB, siteID uint, orderNo string, excludeID uint) error {
	var count int64
	err := tx.Unscoped().Model(&models.Order{}).
		Where("site_id = ? AND order_no = ? AND id <> ?", siteID, orderNo, excludeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check order number: %w", err)
	}
	if count > 0 {
		return newError(ErrConflict, "order number %q already exists for site %d", orderNo, siteID)
	}
	return nil
}

func validateCreate(in CreateOrderInput) error {
	var problems []string
	if in.SiteID == 0 {
		problems = append(problems, "site_id is required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		problems = append(problems, "customer_name is required")
	}
	if in.DeliveryTime.IsZero() {
		problems = append(problems, "delivery_time is required")
	}
	if in.TotalVolume < 0 || in.TotalAmount < 0 {
		problems = append(problems, "totals must not be negative")
	}
	problems = append(problems, validateItems(in.Items)...)

	return validationError(problems)
}

func validateUpdate(in UpdateOrderInput) error {
	var problems []string
	if in.OrderNo != nil && strings.TrimSpace(*in.OrderNo) == "" {
		problems = append(problems, "order_no must not be empty")
	}
	if in.CustomerName != nil && strings.TrimSpace(*in.CustomerName) == "" {
		problems = append(problems, "customer_name must not be empty")
	}
	if in.DeliveryTime != nil && in.DeliveryTime.IsZero() {
		problems = append(problems, "delivery_time must not be empty")
	}
	if (in.TotalVolume != nil && *in.TotalVolume < 0) || (in.TotalAmount != nil && *in.TotalAmount < 0) {
		problems = append(problems, "totals must not be negative")
	}
	if in.Items != nil {
		problems = append(problems, validateItems(*in.Items)...)
	}

	return validationError(problems)
}

func validateItems(items []OrderItemInput) []string {
	var problems []string
	for i, item := range items {
		if item.RecipeID == 0 {
			problems = append(problems, fmt.Sprintf("items[%d].recipe_id is required", i))
		}
		if item.Volume <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d].volume must be positive", i))
		}
		if item.UnitPrice < 0 {
			problems = append(problems, fmt.Sprintf("items[%d].unit_price must not be negative", i))
		}
	}
	return problems
}

func validationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return newError(ErrValidation, "%s", strings.Join(problems, "; "))
}

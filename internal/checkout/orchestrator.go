// Package checkout converts a validated cart into a durable preorder. Stock
// is deliberately not touched here: the reservation a preorder represents is
// advisory until a seller confirms it.
package checkout

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cart-service/internal/availability"
	"cart-service/internal/cart"
	"cart-service/internal/models"
	"cart-service/internal/util"
)

// Backend is the order-of-record surface checkout writes through.
type Backend interface {
	SellerBySlug(ctx context.Context, slug string) (*models.Seller, error)
	NextOrderCode(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, orderID int64) error
}

// Publisher announces placed preorders. A nil publisher is allowed.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// Request carries the customer-entered checkout fields.
type Request struct {
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	PickupTime    time.Time `json:"pickup_time"`
	PointID       int64     `json:"point_id"`
}

// Result is the tagged checkout outcome. Errors lists the offending cart
// lines when the full revalidation found stock conflicts.
type Result struct {
	Success   bool                     `json:"success"`
	OrderCode string                   `json:"order_code,omitempty"`
	Message   string                   `json:"message"`
	Errors    []availability.ItemError `json:"errors,omitempty"`
}

// Orchestrator runs the checkout sequence for one session's cart.
type Orchestrator struct {
	cart      *cart.Cart
	oracle    *availability.Oracle
	backend   Backend
	publisher Publisher
	logger    *zap.Logger
}

// NewOrchestrator creates a checkout orchestrator.
func NewOrchestrator(c *cart.Cart, oracle *availability.Oracle, backend Backend, publisher Publisher) *Orchestrator {
	return &Orchestrator{
		cart:      c,
		oracle:    oracle,
		backend:   backend,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateOrder revalidates the whole cart against live stock, writes the
// order and its items, and clears the cart. On any failure the attempted
// change is fully undone and the cart is left untouched so the customer can
// adjust quantities.
func (o *Orchestrator) CreateOrder(ctx context.Context, req Request) Result {
	ctx, span := util.StartSpan(ctx, "Checkout.CreateOrder")
	defer span.End()

	items := o.cart.Items()
	point := o.cart.SelectedPoint()

	// validation errors are rejected before any backend call
	if len(items) == 0 {
		util.CheckoutFailedTotal.WithLabelValues("empty_cart").Inc()
		return Result{Message: "cart is empty"}
	}
	if point == nil {
		util.CheckoutFailedTotal.WithLabelValues("no_point").Inc()
		return Result{Message: "no pickup point selected"}
	}
	if req.PointID != 0 && req.PointID != point.PointID {
		util.CheckoutFailedTotal.WithLabelValues("point_mismatch").Inc()
		return Result{Message: "pickup point does not match the cart"}
	}

	// full revalidation is the authoritative gate; the per-item checks
	// made while editing the cart are not trusted here
	check := o.oracle.CheckMany(ctx, point.PointID, cartLines(items))
	if !check.Valid {
		util.CheckoutFailedTotal.WithLabelValues("stock_conflict").Inc()
		return Result{
			Message: "some items are no longer available in the requested quantity",
			Errors:  check.Errors,
		}
	}

	seller, err := o.backend.SellerBySlug(ctx, point.SellerSlug)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("seller_lookup").Inc()
		o.logger.Error("Failed to resolve seller at checkout",
			zap.String("seller_slug", point.SellerSlug), zap.Error(err))
		return Result{Message: "failed to resolve seller"}
	}

	code, err := o.backend.NextOrderCode(ctx)
	if err != nil {
		code = fallbackOrderCode()
		o.logger.Warn("Order code generator failed, using random fallback",
			zap.String("order_code", code), zap.Error(err))
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}

	order := &models.Order{
		SellerID:      seller.ID,
		PointID:       point.PointID,
		Status:        models.OrderStatusPreorder,
		OrderCode:     code,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PickupTime:    req.PickupTime,
		TotalAmount:   total,
	}

	if err := o.backend.CreateOrder(ctx, order); err != nil {
		util.CheckoutFailedTotal.WithLabelValues("order_write").Inc()
		o.logger.Error("Failed to create order", zap.Error(err))
		return Result{Message: "failed to create order"}
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   it.ProductID,
			ProductName: it.Snapshot.Name,
			Unit:        it.Unit(),
			Quantity:    it.Qty,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
		})
	}

	if err := o.backend.CreateOrderItems(ctx, orderItems); err != nil {
		// compensating delete: no partial order may persist
		if delErr := o.backend.DeleteOrder(ctx, order.ID); delErr != nil {
			o.logger.Error("Failed to roll back order after item write failure",
				zap.Int64("order_id", order.ID), zap.Error(delErr))
		}
		util.CheckoutFailedTotal.WithLabelValues("items_write").Inc()
		o.logger.Error("Failed to create order items",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return Result{Message: "failed to create order"}
	}

	util.OrdersPlacedTotal.Inc()
	o.logger.Info("Preorder placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_code", order.OrderCode),
		zap.Int64("seller_id", seller.ID),
		zap.Int64("point_id", point.PointID))

	o.publishPlaced(ctx, order, orderItems)
	o.cart.Clear(ctx)

	return Result{Success: true, OrderCode: order.OrderCode, Message: "order placed"}
}

func (o *Orchestrator) publishPlaced(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if o.publisher == nil {
		return
	}

	data := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.OrderItemData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		OrderCode:   order.OrderCode,
		SellerID:    order.SellerID,
		PointID:     order.PointID,
		TotalAmount: order.TotalAmount,
		Items:       data,
	}
	if err := o.publisher.PublishOrderPlaced(ctx, event); err != nil {
		o.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func cartLines(items []cart.Item) []availability.Line {
	lines := make([]availability.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, availability.Line{
			ProductID:   it.ProductID,
			ProductName: it.Snapshot.Name,
			Qty:         it.Qty,
			Unit:        it.Unit(),
		})
	}
	return lines
}

// fallbackOrderCode returns a random 8-digit numeric code for when the
// backend generator is unavailable.
func fallbackOrderCode() string {
	return fmt.Sprintf("%08d", rand.Intn(100000000))
}

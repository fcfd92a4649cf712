// Package confirmation is the seller-side transition out of PREORDER and the
// only place stock is durably decremented. Correctness rests on one guarded
// conditional write, with a per-item stock re-check before it: check late,
// commit once.
package confirmation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cart-service/internal/availability"
	"cart-service/internal/models"
	"cart-service/internal/util"
)

// Store is the backend surface the state machine drives. Transition performs
// the status change as a single conditional write and reports whether the
// precondition held.
type Store interface {
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	OrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	TransitionOrderStatus(ctx context.Context, orderID int64, from, to, reason string) (bool, error)
	DecrementStock(ctx context.Context, pointID, productID int64, qty decimal.Decimal) error
}

// Publisher announces confirmation outcomes. A nil publisher is allowed.
type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderRejected(ctx context.Context, event *models.OrderRejectedEvent) error
	PublishOrderExpired(ctx context.Context, event *models.OrderExpiredEvent) error
}

// OpResult is the tagged outcome of a confirm or reject.
type OpResult struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Errors  []availability.ItemError `json:"errors,omitempty"`
}

// Machine executes the preorder confirmation state machine.
type Machine struct {
	store     Store
	oracle    *availability.Oracle
	publisher Publisher
	logger    *zap.Logger
}

// NewMachine creates a confirmation state machine.
func NewMachine(store Store, oracle *availability.Oracle, publisher Publisher) *Machine {
	return &Machine{
		store:     store,
		oracle:    oracle,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Confirm moves a preorder to CONFIRMED and decrements point-level and
// seller-wide stock for every item. The PREORDER precondition makes a second
// confirm a failure rather than a double decrement. Stock that has since
// dropped below a reserved quantity fails the confirmation instead of being
// silently floored, surfacing the conflict for seller resolution.
func (m *Machine) Confirm(ctx context.Context, orderID int64) OpResult {
	ctx, span := util.StartSpan(ctx, "Confirmation.Confirm")
	defer span.End()

	order, err := m.store.OrderByID(ctx, orderID)
	if err != nil {
		return OpResult{Message: "order not found"}
	}
	if order.Status != models.OrderStatusPreorder {
		return OpResult{Message: "order is not awaiting confirmation"}
	}

	items, err := m.store.OrderItemsByOrderID(ctx, orderID)
	if err != nil {
		m.logger.Error("Failed to load order items",
			zap.Int64("order_id", orderID), zap.Error(err))
		return OpResult{Message: "failed to load order items"}
	}

	check := m.oracle.CheckMany(ctx, order.PointID, itemLines(items))
	if !check.Valid {
		util.StockConflictsTotal.Inc()
		m.logger.Warn("Confirmation refused, stock dropped below reserved quantity",
			zap.Int64("order_id", orderID),
			zap.Int("conflicts", len(check.Errors)))
		return OpResult{
			Message: "stock is no longer sufficient for this order",
			Errors:  check.Errors,
		}
	}

	ok, err := m.store.TransitionOrderStatus(ctx, orderID,
		models.OrderStatusPreorder, models.OrderStatusConfirmed, "")
	if err != nil {
		m.logger.Error("Failed to update order status",
			zap.Int64("order_id", orderID), zap.Error(err))
		return OpResult{Message: "failed to update order"}
	}
	if !ok {
		return OpResult{Message: "order is not awaiting confirmation"}
	}

	start := time.Now()
	for _, it := range items {
		if err := m.store.DecrementStock(ctx, order.PointID, it.ProductID, it.Quantity); err != nil {
			// the status flip already stands: record the inconsistency
			// loudly instead of pretending success
			util.StockInconsistenciesTotal.Inc()
			m.logger.Error("Stock decrement failed after order confirmation, state is inconsistent",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", it.ProductID),
				zap.String("quantity", it.Quantity.String()),
				zap.Error(err))
			return OpResult{Message: "order confirmed but stock update incomplete, operator attention required"}
		}
	}
	util.StockDecrementLatency.Observe(time.Since(start).Seconds())

	util.OrdersConfirmedTotal.Inc()
	m.logger.Info("Order confirmed",
		zap.Int64("order_id", orderID),
		zap.String("order_code", order.OrderCode))

	if m.publisher != nil {
		event := &models.OrderConfirmedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderConfirmed),
			OrderID:   order.ID,
			OrderCode: order.OrderCode,
			SellerID:  order.SellerID,
		}
		if err := m.publisher.PublishOrderConfirmed(ctx, event); err != nil {
			m.logger.Error("Failed to publish OrderConfirmed event",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	return OpResult{Success: true, Message: "order confirmed"}
}

// Reject moves a preorder to REJECTED with a recorded reason. Stock is never
// touched: nothing was consumed yet.
func (m *Machine) Reject(ctx context.Context, orderID int64, reason string) OpResult {
	ctx, span := util.StartSpan(ctx, "Confirmation.Reject")
	defer span.End()

	order, err := m.store.OrderByID(ctx, orderID)
	if err != nil {
		return OpResult{Message: "order not found"}
	}
	if order.Status != models.OrderStatusPreorder {
		return OpResult{Message: "order is not awaiting confirmation"}
	}

	ok, err := m.store.TransitionOrderStatus(ctx, orderID,
		models.OrderStatusPreorder, models.OrderStatusRejected, reason)
	if err != nil {
		m.logger.Error("Failed to update order status",
			zap.Int64("order_id", orderID), zap.Error(err))
		return OpResult{Message: "failed to update order"}
	}
	if !ok {
		return OpResult{Message: "order is not awaiting confirmation"}
	}

	label := "seller"
	if reason == models.RejectReasonExpired {
		label = models.RejectReasonExpired
	}
	util.OrdersRejectedTotal.WithLabelValues(label).Inc()
	m.logger.Info("Order rejected",
		zap.Int64("order_id", orderID),
		zap.String("order_code", order.OrderCode),
		zap.String("reason", reason))

	m.publishRejected(ctx, order, reason)
	return OpResult{Success: true, Message: "order rejected"}
}

func (m *Machine) publishRejected(ctx context.Context, order *models.Order, reason string) {
	if m.publisher == nil {
		return
	}

	var err error
	if reason == models.RejectReasonExpired {
		err = m.publisher.PublishOrderExpired(ctx, &models.OrderExpiredEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderExpired),
			OrderID:   order.ID,
			OrderCode: order.OrderCode,
			SellerID:  order.SellerID,
		})
	} else {
		err = m.publisher.PublishOrderRejected(ctx, &models.OrderRejectedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderRejected),
			OrderID:   order.ID,
			OrderCode: order.OrderCode,
			SellerID:  order.SellerID,
			Reason:    reason,
		})
	}
	if err != nil {
		m.logger.Error("Failed to publish rejection event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func itemLines(items []models.OrderItem) []availability.Line {
	lines := make([]availability.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, availability.Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Qty:         it.Quantity,
			Unit:        it.Unit,
		})
	}
	return lines
}

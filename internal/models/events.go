package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderRejected  = "ORDER_REJECTED"
	EventTypeOrderExpired   = "ORDER_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event envelope of the given type.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// OrderPlacedEvent published when checkout creates a preorder
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderCode   string          `json:"order_code"`
	SellerID    int64           `json:"seller_id"`
	PointID     int64           `json:"point_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when a seller confirms a preorder and
// stock has been durably decremented
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	SellerID  int64  `json:"seller_id"`
}

// OrderRejectedEvent published when a seller rejects a preorder
type OrderRejectedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	SellerID  int64  `json:"seller_id"`
	Reason    string `json:"reason"`
}

// OrderExpiredEvent published when the expiry worker rejects a stale preorder
type OrderExpiredEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	SellerID  int64  `json:"seller_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

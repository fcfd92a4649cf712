package models

import (
	"time"

	"github.com/shopspring/decimal"

	"cart-service/internal/quantity"
)

// Seller represents a marketplace seller
type Seller struct {
	ID        int64     `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PickupPoint represents a physical pickup location belonging to one seller
type PickupPoint struct {
	ID       int64  `db:"id" json:"id"`
	SellerID int64  `db:"seller_id" json:"seller_id"`
	Name     string `db:"name" json:"name"`
	Address  string `db:"address" json:"address"`
}

// Product represents a product in a seller's catalog
type Product struct {
	ID            int64                 `db:"id" json:"id"`
	SellerID      int64                 `db:"seller_id" json:"seller_id"`
	Name          string                `db:"name" json:"name"`
	Unit          quantity.Unit         `db:"unit" json:"unit"`
	Price         decimal.Decimal       `db:"price" json:"price"`
	DiscountKind  quantity.DiscountKind `db:"discount_kind" json:"discount_kind"`
	DiscountValue decimal.Decimal       `db:"discount_value" json:"discount_value"`
	CreatedAt     time.Time             `db:"created_at" json:"created_at"`
}

// EffectivePrice returns the product price with its discount applied.
func (p *Product) EffectivePrice() decimal.Decimal {
	return quantity.EffectivePrice(p.Price, p.DiscountKind, p.DiscountValue)
}

// ProductSnapshot is the slice of product data frozen into cart lines and
// order items, so later catalog edits do not rewrite history.
type ProductSnapshot struct {
	Name          string                `json:"name"`
	Unit          quantity.Unit         `json:"unit"`
	Price         decimal.Decimal       `json:"price"`
	DiscountKind  quantity.DiscountKind `json:"discount_kind,omitempty"`
	DiscountValue decimal.Decimal       `json:"discount_value"`
}

// EffectivePrice returns the snapshot price with its discount applied.
func (s ProductSnapshot) EffectivePrice() decimal.Decimal {
	return quantity.EffectivePrice(s.Price, s.DiscountKind, s.DiscountValue)
}

// StockRecord is the point-level stock for a product. Mutated only by seller
// admin edits and by order confirmation, never by cart operations.
type StockRecord struct {
	PointID   int64           `db:"point_id" json:"point_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// GlobalStockRecord is the seller-wide fallback stock used when no
// point-level record exists for a product.
type GlobalStockRecord struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order
type Order struct {
	ID            int64           `db:"id" json:"id"`
	SellerID      int64           `db:"seller_id" json:"seller_id"`
	PointID       int64           `db:"point_id" json:"point_id"`
	Status        string          `db:"status" json:"status"`
	OrderCode     string          `db:"order_code" json:"order_code"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	CustomerPhone string          `db:"customer_phone" json:"customer_phone"`
	PickupTime    time.Time       `db:"pickup_time" json:"pickup_time"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	RejectReason  string          `db:"reject_reason" json:"reject_reason,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Unit        quantity.Unit   `db:"unit" json:"unit"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Order lifecycle. An order is placed as PREORDER and consumes no stock
// until a seller confirms it. PREORDER -> CONFIRMED is the only transition
// that decrements stock. The states after CONFIRMED track fulfillment only.
const (
	OrderStatusPreorder  = "PREORDER"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusReady     = "READY"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

var validNext = map[string]map[string]bool{
	OrderStatusPreorder:  {OrderStatusConfirmed: true, OrderStatusRejected: true},
	OrderStatusConfirmed: {OrderStatusReady: true, OrderStatusCancelled: true},
	OrderStatusReady:     {OrderStatusCompleted: true, OrderStatusCancelled: true},
	OrderStatusRejected:  {},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}

// RejectReasonExpired marks preorders rejected by the expiry worker rather
// than by a seller decision.
const RejectReasonExpired = "expired"

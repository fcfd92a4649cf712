// Package reservation enforces the soft limits on cart quantities. Every
// quantity change is clamped against live availability through the quantity
// model, and only boolean/enum signals cross the boundary: the numeric stock
// ceiling is never part of a result.
package reservation

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"cart-service/internal/availability"
	"cart-service/internal/cart"
	"cart-service/internal/models"
	"cart-service/internal/quantity"
	"cart-service/internal/util"
)

// Reason tags why an operation was refused or adjusted.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonLimit             Reason = "LIMIT"
	ReasonDifferentSeller   Reason = "DIFFERENT_SELLER"
	ReasonDifferentPoint    Reason = "DIFFERENT_POINT"
	ReasonInsufficientStock Reason = "INSUFFICIENT_STOCK"
	ReasonInvalidQty        Reason = "INVALID_QTY"
	ReasonNotInCart         Reason = "NOT_IN_CART"
)

// Result is the tagged outcome of an engine operation. Qty is the quantity
// actually in the cart afterwards. Version lets callers discard responses
// that raced with a later mutation.
type Result struct {
	OK      bool            `json:"ok"`
	Qty     decimal.Decimal `json:"qty"`
	Reason  Reason          `json:"reason,omitempty"`
	Version uint64          `json:"version"`
}

// AddRequest describes a product being added to the cart.
type AddRequest struct {
	ProductID  int64
	SellerSlug string
	PointID    int64
	PointName  string
	Qty        decimal.Decimal
	UnitPrice  decimal.Decimal
	Snapshot   models.ProductSnapshot
}

// Engine is the per-session rules engine. A mutex serializes operations so
// each one fully completes, including its persisted write and notifications,
// before the next is applied: the single-logical-actor model.
type Engine struct {
	mu     sync.Mutex
	cart   *cart.Cart
	oracle *availability.Oracle
}

// NewEngine creates an engine over one session's cart.
func NewEngine(c *cart.Cart, oracle *availability.Oracle) *Engine {
	return &Engine{cart: c, oracle: oracle}
}

// TrySetQty sets a line's quantity, clamped to what availability allows on
// top of what the cart already holds. A reduced value is applied and
// reported with the LIMIT reason; the ceiling itself stays internal.
func (e *Engine) TrySetQty(ctx context.Context, productID int64, desired decimal.Decimal) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setQtyLocked(ctx, productID, desired)
}

// SetExactQty applies a directly entered quantity. Zero removes the line.
func (e *Engine) SetExactQty(ctx context.Context, productID int64, desired decimal.Decimal) Result {
	return e.TrySetQty(ctx, productID, desired)
}

// Increment moves a line up by exactly one unit step.
func (e *Engine) Increment(ctx context.Context, productID int64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.cart.Item(productID)
	if !ok {
		return e.refused(ReasonNotInCart, decimal.Zero)
	}
	return e.setQtyLocked(ctx, productID, item.Qty.Add(quantity.Step(item.Unit())))
}

// Decrement moves a line down by exactly one unit step. Reaching zero or
// below removes the line.
func (e *Engine) Decrement(ctx context.Context, productID int64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.cart.Item(productID)
	if !ok {
		return e.refused(ReasonNotInCart, decimal.Zero)
	}

	next := item.Qty.Sub(quantity.Step(item.Unit()))
	if !next.IsPositive() {
		e.cart.Remove(ctx, productID)
		return Result{OK: true, Qty: decimal.Zero, Version: e.cart.Version()}
	}
	return e.setQtyLocked(ctx, productID, next)
}

// CanAddToCart checks whether a product may be added: the single-seller,
// single-point lock first, then stock. The cart is never modified.
func (e *Engine) CanAddToCart(ctx context.Context, req AddRequest) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canAddLocked(ctx, req)
}

// AddToCart validates the same way as CanAddToCart and then merges the line
// into the cart, locking it to the request's point on first add.
func (e *Engine) AddToCart(ctx context.Context, req AddRequest) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.canAddLocked(ctx, req)
	if !res.OK {
		return res
	}

	e.cart.AddOrMerge(ctx, cart.Item{
		ProductID:  req.ProductID,
		SellerSlug: req.SellerSlug,
		PointID:    req.PointID,
		Qty:        res.Qty,
		UnitPrice:  req.UnitPrice,
		Snapshot:   req.Snapshot,
	}, cart.SelectedPoint{
		SellerSlug: req.SellerSlug,
		PointID:    req.PointID,
		PointName:  req.PointName,
	})

	item, _ := e.cart.Item(req.ProductID)
	return Result{OK: true, Qty: item.Qty, Version: e.cart.Version()}
}

func (e *Engine) canAddLocked(ctx context.Context, req AddRequest) Result {
	qty := quantity.Normalize(req.Qty, req.Snapshot.Unit)
	if !qty.IsPositive() {
		return e.refused(ReasonInvalidQty, decimal.Zero)
	}

	// lock check is synchronous, before any stock I/O
	if items := e.cart.Items(); len(items) > 0 {
		if items[0].SellerSlug != req.SellerSlug {
			return e.refused(ReasonDifferentSeller, decimal.Zero)
		}
		if items[0].PointID != req.PointID {
			return e.refused(ReasonDifferentPoint, decimal.Zero)
		}
	}

	var already decimal.Decimal
	if item, ok := e.cart.Item(req.ProductID); ok {
		already = item.Qty
	}

	if qty.GreaterThan(e.oracle.MaxAddable(ctx, req.PointID, req.ProductID, already)) {
		return e.refused(ReasonInsufficientStock, already)
	}
	return Result{OK: true, Qty: qty, Version: e.cart.Version()}
}

func (e *Engine) setQtyLocked(ctx context.Context, productID int64, desired decimal.Decimal) Result {
	item, ok := e.cart.Item(productID)
	if !ok {
		return e.refused(ReasonNotInCart, decimal.Zero)
	}

	unit := item.Unit()
	wanted := quantity.Normalize(desired, unit)

	// alreadyInCart + maxAddable: the line may always keep its current
	// quantity even when stock has since dropped below it
	maxAllowed := item.Qty.Add(e.oracle.MaxAddable(ctx, item.PointID, productID, item.Qty))
	applied := quantity.Clamp(wanted, unit, decimal.Zero, maxAllowed)

	if !applied.IsPositive() {
		e.cart.Remove(ctx, productID)
		return Result{OK: true, Qty: decimal.Zero, Version: e.cart.Version()}
	}

	e.cart.SetQuantity(ctx, productID, applied)

	if applied.LessThan(wanted) {
		util.CartQtyClampsTotal.Inc()
		return Result{OK: false, Qty: applied, Reason: ReasonLimit, Version: e.cart.Version()}
	}
	return Result{OK: true, Qty: applied, Version: e.cart.Version()}
}

func (e *Engine) refused(reason Reason, qty decimal.Decimal) Result {
	util.CartRejectionsTotal.WithLabelValues(string(reason)).Inc()
	return Result{OK: false, Qty: qty, Reason: reason, Version: e.cart.Version()}
}

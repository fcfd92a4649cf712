// Package cart holds a customer session's in-progress selection: the line
// items and the seller/pickup-point pair the cart is locked to. Every
// mutation is flushed to a persisted KV store and announced synchronously to
// subscribers, so a reload reconstructs the same cart and the UI re-renders
// on every change.
package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cart-service/internal/models"
	"cart-service/internal/quantity"
	"cart-service/internal/util"
)

// Item is one cart line. All items in a cart share the same SellerSlug and
// PointID (single-seller, single-point invariant, enforced by the
// reservation engine before anything reaches the cart).
type Item struct {
	ProductID  int64                  `json:"product_id"`
	SellerSlug string                 `json:"seller_slug"`
	PointID    int64                  `json:"point_id"`
	Qty        decimal.Decimal        `json:"qty"`
	UnitPrice  decimal.Decimal        `json:"unit_price"`
	Snapshot   models.ProductSnapshot `json:"snapshot"`
}

// Unit returns the unit frozen into the line's product snapshot.
func (it Item) Unit() quantity.Unit {
	return it.Snapshot.Unit
}

// Subtotal returns the line subtotal at 2-decimal money precision.
func (it Item) Subtotal() decimal.Decimal {
	return quantity.LineSubtotal(it.UnitPrice, it.Qty)
}

// SelectedPoint is the lock target for the current cart: set on first add or
// explicit choice, cleared on cart clear.
type SelectedPoint struct {
	SellerSlug string `json:"seller_slug"`
	PointID    int64  `json:"point_id"`
	PointName  string `json:"point_name"`
}

// Totals is the aggregate over all cart lines.
type Totals struct {
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// schemaVersion tags the persisted blob so the layout can evolve without
// corrupting carts written by older builds.
const schemaVersion = 1

type blob struct {
	SchemaVersion int            `json:"schema_version"`
	Items         []Item         `json:"items"`
	Point         *SelectedPoint `json:"point,omitempty"`
}

// Cart is a single session's cart. Methods are safe for concurrent use, and
// each mutation completes its persisted write and notifications before
// returning.
type Cart struct {
	kv     KV
	key    string
	logger *zap.Logger

	mu        sync.Mutex
	items     []Item
	point     *SelectedPoint
	version   uint64
	nextSub   int
	itemSubs  map[int]func([]Item)
	pointSubs map[int]func(*SelectedPoint)
}

// Load reads the persisted cart for a session. Read faults and unreadable
// blobs are logged and degrade to an empty cart, never to a failure.
func Load(ctx context.Context, kv KV, key string) *Cart {
	c := &Cart{
		kv:        kv,
		key:       key,
		logger:    util.GetLogger(),
		itemSubs:  make(map[int]func([]Item)),
		pointSubs: make(map[int]func(*SelectedPoint)),
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		util.CartLoadFailuresTotal.Inc()
		c.logger.Warn("Failed to read persisted cart, starting empty",
			zap.String("key", key), zap.Error(err))
		return c
	}
	if raw == nil {
		return c
	}

	var b blob
	if err := json.Unmarshal(raw, &b); err != nil || b.SchemaVersion != schemaVersion {
		util.CartLoadFailuresTotal.Inc()
		c.logger.Warn("Persisted cart blob unreadable, starting empty",
			zap.String("key", key),
			zap.Int("schema_version", b.SchemaVersion),
			zap.Error(err))
		return c
	}

	c.items = b.Items
	c.point = b.Point
	return c
}

// Items returns a copy of the current cart lines.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyItems()
}

// Item returns the line for a product, if present.
func (c *Cart) Item(productID int64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// SelectedPoint returns the cart's lock target, or nil when none is set.
func (c *Cart) SelectedPoint() *SelectedPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.point == nil {
		return nil
	}
	p := *c.point
	return &p
}

// Version is a monotonic mutation counter. Callers use it to discard stale
// asynchronous results that were computed against an older cart state.
func (c *Cart) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Totals returns the cart total (2-decimal money) and the line count.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return Totals{Total: total, ItemCount: len(c.items)}
}

// AddOrMerge adds a line, merging the quantity into an existing line for the
// same product. The first add also locks the cart to the given point, so the
// items-without-point state is never observable.
func (c *Cart) AddOrMerge(ctx context.Context, item Item, point SelectedPoint) {
	c.mu.Lock()
	merged := false
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Qty = quantity.Normalize(c.items[i].Qty.Add(item.Qty), item.Unit())
			merged = true
			break
		}
	}
	if !merged {
		item.Qty = quantity.Normalize(item.Qty, item.Unit())
		c.items = append(c.items, item)
	}

	pointChanged := c.point == nil || c.point.PointID != point.PointID
	if pointChanged {
		p := point
		c.point = &p
	}
	c.finishMutation(ctx, "add", pointChanged)
}

// Remove deletes the line for a product. Removing an absent product is a
// no-op without notification.
func (c *Cart) Remove(ctx context.Context, productID int64) {
	c.mu.Lock()
	kept := c.items[:0]
	removed := false
	for _, it := range c.items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		c.mu.Unlock()
		return
	}
	c.items = kept
	c.finishMutation(ctx, "remove", false)
}

// SetQuantity sets a line's quantity, removing the line when qty <= 0.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, qty decimal.Decimal) {
	if !qty.IsPositive() {
		c.Remove(ctx, productID)
		return
	}

	c.mu.Lock()
	changed := false
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Qty = quantity.Normalize(qty, c.items[i].Unit())
			changed = true
			break
		}
	}
	if !changed {
		c.mu.Unlock()
		return
	}
	c.finishMutation(ctx, "set_qty", false)
}

// Replace swaps the whole cart content in one synchronous update.
func (c *Cart) Replace(ctx context.Context, items []Item, point *SelectedPoint) {
	c.mu.Lock()
	c.items = items
	c.point = point
	c.finishMutation(ctx, "replace", true)
}

// SetSelectedPoint records an explicit point choice before any item is added.
func (c *Cart) SetSelectedPoint(ctx context.Context, point SelectedPoint) {
	c.mu.Lock()
	p := point
	c.point = &p
	c.finishMutation(ctx, "set_point", true)
}

// Clear removes all lines and the selected point, and drops the persisted
// blob.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	c.items = nil
	c.point = nil
	c.version++
	util.CartMutationsTotal.WithLabelValues("clear").Inc()

	if err := c.kv.Delete(ctx, c.key); err != nil {
		c.logger.Warn("Failed to delete persisted cart",
			zap.String("key", c.key), zap.Error(err))
	}

	itemSubs, pointSubs := c.snapshotSubs()
	c.mu.Unlock()

	for _, fn := range itemSubs {
		fn(nil)
	}
	for _, fn := range pointSubs {
		fn(nil)
	}
}

// Subscribe registers an observer for cart content changes. The returned
// function removes the subscription.
func (c *Cart) Subscribe(fn func([]Item)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.itemSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.itemSubs, id)
	}
}

// SubscribePoint registers an observer for selected-point changes.
func (c *Cart) SubscribePoint(fn func(*SelectedPoint)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.pointSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.pointSubs, id)
	}
}

// finishMutation persists the new state and fires notifications. Called with
// c.mu held; releases it.
func (c *Cart) finishMutation(ctx context.Context, op string, pointChanged bool) {
	c.version++
	util.CartMutationsTotal.WithLabelValues(op).Inc()

	c.persistLocked(ctx)

	items := c.copyItems()
	var point *SelectedPoint
	if c.point != nil {
		p := *c.point
		point = &p
	}
	itemSubs, pointSubs := c.snapshotSubs()
	c.mu.Unlock()

	for _, fn := range itemSubs {
		fn(items)
	}
	if pointChanged {
		for _, fn := range pointSubs {
			fn(point)
		}
	}
}

// persistLocked flushes the blob. Write faults are logged and the in-memory
// state stands; the cart never fails closed.
func (c *Cart) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(blob{
		SchemaVersion: schemaVersion,
		Items:         c.items,
		Point:         c.point,
	})
	if err != nil {
		c.logger.Error("Failed to encode cart blob", zap.String("key", c.key), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		c.logger.Warn("Failed to persist cart",
			zap.String("key", c.key), zap.Error(err))
	}
}

func (c *Cart) copyItems() []Item {
	items := make([]Item, len(c.items))
	copy(items, c.items)
	return items
}

func (c *Cart) snapshotSubs() ([]func([]Item), []func(*SelectedPoint)) {
	itemSubs := make([]func([]Item), 0, len(c.itemSubs))
	for _, fn := range c.itemSubs {
		itemSubs = append(itemSubs, fn)
	}
	pointSubs := make([]func(*SelectedPoint), 0, len(c.pointSubs))
	for _, fn := range c.pointSubs {
		pointSubs = append(pointSubs, fn)
	}
	return itemSubs, pointSubs
}

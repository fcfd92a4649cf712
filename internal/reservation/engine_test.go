package reservation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/availability"
	"cart-service/internal/cart"
	"cart-service/internal/models"
	"cart-service/internal/quantity"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stockKey struct {
	pointID   int64
	productID int64
}

type fakeStock struct {
	point  map[stockKey]decimal.Decimal
	global map[int64]decimal.Decimal
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		point:  make(map[stockKey]decimal.Decimal),
		global: make(map[int64]decimal.Decimal),
	}
}

func (f *fakeStock) PointStock(_ context.Context, pointID, productID int64) (decimal.Decimal, bool, error) {
	q, ok := f.point[stockKey{pointID, productID}]
	return q, ok, nil
}

func (f *fakeStock) GlobalStock(_ context.Context, productID int64) (decimal.Decimal, bool, error) {
	q, ok := f.global[productID]
	return q, ok, nil
}

func newEngine(t *testing.T, stock *fakeStock) (*Engine, *cart.Cart) {
	t.Helper()
	c := cart.Load(context.Background(), cart.NewMemoryKV(), "cart:test")
	return NewEngine(c, availability.NewOracle(stock)), c
}

func addReq(productID int64, qty string, unit quantity.Unit) AddRequest {
	return AddRequest{
		ProductID:  productID,
		SellerSlug: "greenfarm",
		PointID:    7,
		PointName:  "Central Market",
		Qty:        dec(qty),
		UnitPrice:  dec("10"),
		Snapshot:   models.ProductSnapshot{Name: "apples", Unit: unit, Price: dec("10")},
	}
}

func TestIncrementClampsAtStock(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("5")
	e, _ := newEngine(t, stock)
	ctx := context.Background()

	res := e.AddToCart(ctx, addReq(1, "3", quantity.UnitPiece))
	require.True(t, res.OK)

	res = e.Increment(ctx, 1)
	assert.True(t, res.OK)
	assert.True(t, res.Qty.Equal(dec("4")))

	res = e.Increment(ctx, 1)
	assert.True(t, res.OK)
	assert.True(t, res.Qty.Equal(dec("5")))

	// the call that would exceed stock clamps and reports LIMIT,
	// without the ceiling itself appearing anywhere in the result
	res = e.Increment(ctx, 1)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonLimit, res.Reason)
	assert.True(t, res.Qty.Equal(dec("5")))
}

func TestSingleSellerSinglePointLock(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("5")
	stock.point[stockKey{7, 2}] = dec("5")
	stock.point[stockKey{8, 2}] = dec("5")
	e, c := newEngine(t, stock)
	ctx := context.Background()

	require.True(t, e.AddToCart(ctx, addReq(1, "1", quantity.UnitPiece)).OK)
	before := c.Items()

	other := addReq(2, "1", quantity.UnitPiece)
	other.SellerSlug = "bluefarm"
	res := e.CanAddToCart(ctx, other)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonDifferentSeller, res.Reason)

	otherPoint := addReq(2, "1", quantity.UnitPiece)
	otherPoint.PointID = 8
	res = e.AddToCart(ctx, otherPoint)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonDifferentPoint, res.Reason)

	// cart unchanged by refused adds
	assert.Equal(t, before, c.Items())
}

func TestCanAddInsufficientStock(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("2")
	e, _ := newEngine(t, stock)

	res := e.CanAddToCart(context.Background(), addReq(1, "3", quantity.UnitPiece))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInsufficientStock, res.Reason)
}

func TestCanAddRejectsNonPositiveQty(t *testing.T) {
	e, _ := newEngine(t, newFakeStock())

	res := e.CanAddToCart(context.Background(), addReq(1, "0", quantity.UnitPiece))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInvalidQty, res.Reason)
}

func TestFineWeightNormalizesBeforeStockCheck(t *testing.T) {
	// stock 120 g, step 50: a request for 130 normalizes down to 100,
	// which fits, so the request succeeds
	stock := newFakeStock()
	stock.point[stockKey{7, 3}] = dec("120")
	e, _ := newEngine(t, stock)
	ctx := context.Background()

	req := addReq(3, "50", quantity.UnitGram)
	req.Snapshot.Unit = quantity.UnitGram
	require.True(t, e.AddToCart(ctx, req).OK)

	res := e.SetExactQty(ctx, 3, dec("130"))
	assert.True(t, res.OK)
	assert.True(t, res.Qty.Equal(dec("100")), "got %s", res.Qty)
}

func TestDecrementToZeroRemovesLine(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("5")
	e, c := newEngine(t, stock)
	ctx := context.Background()

	require.True(t, e.AddToCart(ctx, addReq(1, "1", quantity.UnitPiece)).OK)

	res := e.Decrement(ctx, 1)
	assert.True(t, res.OK)
	assert.True(t, res.Qty.IsZero())
	assert.True(t, c.IsEmpty())
}

func TestSetQtyZeroRemovesLine(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("5")
	e, c := newEngine(t, stock)
	ctx := context.Background()

	require.True(t, e.AddToCart(ctx, addReq(1, "2", quantity.UnitPiece)).OK)

	res := e.SetExactQty(ctx, 1, decimal.Zero)
	assert.True(t, res.OK)
	assert.True(t, c.IsEmpty())
}

func TestOperationsOnAbsentLine(t *testing.T) {
	e, _ := newEngine(t, newFakeStock())
	ctx := context.Background()

	assert.Equal(t, ReasonNotInCart, e.Increment(ctx, 42).Reason)
	assert.Equal(t, ReasonNotInCart, e.Decrement(ctx, 42).Reason)
	assert.Equal(t, ReasonNotInCart, e.TrySetQty(ctx, 42, dec("1")).Reason)
}

func TestLineKeepsQtyWhenStockDropsBelowIt(t *testing.T) {
	stock := newFakeStock()
	stock.point[stockKey{7, 1}] = dec("5")
	e, _ := newEngine(t, stock)
	ctx := context.Background()

	require.True(t, e.AddToCart(ctx, addReq(1, "4", quantity.UnitPiece)).OK)

	// another session consumed stock; this one may keep what it holds
	// but cannot grow the line
	stock.point[stockKey{7, 1}] = dec("2")

	res := e.TrySetQty(ctx, 1, dec("6"))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonLimit, res.Reason)
	assert.True(t, res.Qty.Equal(dec("4")), "got %s", res.Qty)
}

func TestMergeClampDoesNotExceedStock(t *testing.T) {
	stock := newFakeStock()
	stock.global[1] = dec("3")
	e, _ := newEngine(t, stock)
	ctx := context.Background()

	require.True(t, e.AddToCart(ctx, addReq(1, "2", quantity.UnitPiece)).OK)

	// adding 2 more would exceed the seller-wide fallback stock of 3
	res := e.AddToCart(ctx, addReq(1, "2", quantity.UnitPiece))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInsufficientStock, res.Reason)

	res = e.AddToCart(ctx, addReq(1, "1", quantity.UnitPiece))
	assert.True(t, res.OK)
	assert.True(t, res.Qty.Equal(dec("3")))
}

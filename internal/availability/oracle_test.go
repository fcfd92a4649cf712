package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	point   map[stockKey]decimal.Decimal
	global  map[int64]decimal.Decimal
	failAll bool
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		point:  make(map[stockKey]decimal.Decimal),
		global: make(map[int64]decimal.Decimal),
	}
}

func (f *fakeStock) PointStock(_ context.Context, pointID, productID int64) (decimal.Decimal, bool, error) {
	if f.failAll {
		return decimal.Zero, false, errors.New("db down")
	}
	q, ok := f.point[stockKey{pointID, productID}]
	return q, ok, nil
}

func (f *fakeStock) GlobalStock(_ context.Context, productID int64) (decimal.Decimal, bool, error) {
	if f.failAll {
		return decimal.Zero, false, errors.New("db down")
	}
	q, ok := f.global[productID]
	return q, ok, nil
}

func TestStockOfPrefersPointRecord(t *testing.T) {
	src := newFakeStock()
	src.point[stockKey{7, 1}] = dec("5")
	src.global[1] = dec("100")

	o := NewOracle(src)
	assert.True(t, o.StockOf(context.Background(), 7, 1).Equal(dec("5")))
}

func TestStockOfFallsBackToGlobal(t *testing.T) {
	src := newFakeStock()
	src.global[1] = dec("100")

	o := NewOracle(src)
	assert.True(t, o.StockOf(context.Background(), 7, 1).Equal(dec("100")))
}

func TestStockOfUnknownIsZero(t *testing.T) {
	o := NewOracle(newFakeStock())
	assert.True(t, o.StockOf(context.Background(), 7, 99).IsZero())
}

func TestStockOfReadFaultIsZero(t *testing.T) {
	src := newFakeStock()
	src.point[stockKey{7, 1}] = dec("5")
	src.failAll = true

	o := NewOracle(src)
	assert.True(t, o.StockOf(context.Background(), 7, 1).IsZero())
}

func TestMaxAddable(t *testing.T) {
	src := newFakeStock()
	src.point[stockKey{7, 1}] = dec("5")
	o := NewOracle(src)
	ctx := context.Background()

	assert.True(t, o.MaxAddable(ctx, 7, 1, dec("3")).Equal(dec("2")))
	assert.True(t, o.MaxAddable(ctx, 7, 1, dec("5")).IsZero())

	// cart already over stock never yields a negative headroom
	assert.True(t, o.MaxAddable(ctx, 7, 1, dec("9")).IsZero())
}

func TestCheckMany(t *testing.T) {
	src := newFakeStock()
	src.point[stockKey{7, 1}] = dec("5")
	src.global[2] = dec("120")
	o := NewOracle(src)

	res := o.CheckMany(context.Background(), 7, []Line{
		{ProductID: 1, ProductName: "apples", Qty: dec("5"), Unit: quantity.UnitPiece},
		{ProductID: 2, ProductName: "cheese", Qty: dec("100"), Unit: quantity.UnitGram},
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res = o.CheckMany(context.Background(), 7, []Line{
		{ProductID: 1, ProductName: "apples", Qty: dec("6"), Unit: quantity.UnitPiece},
		{ProductID: 2, ProductName: "cheese", Qty: dec("150"), Unit: quantity.UnitGram},
	})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "apples", res.Errors[0].ProductName)
	assert.True(t, res.Errors[0].Requested.Equal(dec("6")))
	assert.True(t, res.Errors[0].Available.Equal(dec("5")))
	assert.Equal(t, quantity.UnitGram, res.Errors[1].Unit)
}

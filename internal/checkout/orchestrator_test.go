package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

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
	point map[stockKey]decimal.Decimal
}

func (f *fakeStock) PointStock(_ context.Context, pointID, productID int64) (decimal.Decimal, bool, error) {
	q, ok := f.point[stockKey{pointID, productID}]
	return q, ok, nil
}

func (f *fakeStock) GlobalStock(context.Context, int64) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

type fakeBackend struct {
	nextID       int64
	orders       map[int64]*models.Order
	items        map[int64][]models.OrderItem
	failCodeGen  bool
	failOrder    bool
	failItems    bool
	deletedOrder int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
}

func (f *fakeBackend) SellerBySlug(_ context.Context, slug string) (*models.Seller, error) {
	if slug != "greenfarm" {
		return nil, errors.New("seller not found")
	}
	return &models.Seller{ID: 11, Slug: slug, Name: "Green Farm"}, nil
}

func (f *fakeBackend) NextOrderCode(context.Context) (string, error) {
	if f.failCodeGen {
		return "", errors.New("sequence unavailable")
	}
	return "ORD-000042", nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, order *models.Order) error {
	if f.failOrder {
		return errors.New("insert failed")
	}
	f.nextID++
	order.ID = f.nextID
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeBackend) CreateOrderItems(_ context.Context, items []models.OrderItem) error {
	if f.failItems {
		return errors.New("insert failed")
	}
	for _, it := range items {
		f.items[it.OrderID] = append(f.items[it.OrderID], it)
	}
	return nil
}

func (f *fakeBackend) DeleteOrder(_ context.Context, orderID int64) error {
	f.deletedOrder = orderID
	delete(f.orders, orderID)
	delete(f.items, orderID)
	return nil
}

var testPoint = cart.SelectedPoint{SellerSlug: "greenfarm", PointID: 7, PointName: "Central Market"}

func loadedCart(t *testing.T) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c := cart.Load(ctx, cart.NewMemoryKV(), "cart:test")
	c.AddOrMerge(ctx, cart.Item{
		ProductID:  1,
		SellerSlug: "greenfarm",
		PointID:    7,
		Qty:        dec("3"),
		UnitPrice:  dec("10"),
		Snapshot:   models.ProductSnapshot{Name: "apples", Unit: quantity.UnitPiece, Price: dec("10")},
	}, testPoint)
	return c
}

func request() Request {
	return Request{
		CustomerName:  "Ana",
		CustomerPhone: "+37360000000",
		PickupTime:    time.Now().Add(2 * time.Hour),
		PointID:       7,
	}
}

func TestEmptyCartFailsWithoutBackendCalls(t *testing.T) {
	backend := newFakeBackend()
	c := cart.Load(context.Background(), cart.NewMemoryKV(), "cart:test")
	o := NewOrchestrator(c, availability.NewOracle(&fakeStock{}), backend, nil)

	res := o.CreateOrder(context.Background(), request())
	assert.False(t, res.Success)
	assert.Equal(t, "cart is empty", res.Message)
	assert.Empty(t, backend.orders)
}

func TestStockConflictAbortsAndLeavesCartUntouched(t *testing.T) {
	backend := newFakeBackend()
	stock := &fakeStock{point: map[stockKey]decimal.Decimal{{7, 1}: dec("2")}}
	c := loadedCart(t)
	o := NewOrchestrator(c, availability.NewOracle(stock), backend, nil)

	res := o.CreateOrder(context.Background(), request())
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(1), res.Errors[0].ProductID)
	assert.True(t, res.Errors[0].Requested.Equal(dec("3")))
	assert.True(t, res.Errors[0].Available.Equal(dec("2")))

	assert.False(t, c.IsEmpty())
	assert.Empty(t, backend.orders)
}

func TestSuccessfulCheckout(t *testing.T) {
	backend := newFakeBackend()
	stock := &fakeStock{point: map[stockKey]decimal.Decimal{{7, 1}: dec("5")}}
	c := loadedCart(t)
	o := NewOrchestrator(c, availability.NewOracle(stock), backend, nil)

	before := stock.point[stockKey{7, 1}]

	res := o.CreateOrder(context.Background(), request())
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "ORD-000042", res.OrderCode)

	require.Len(t, backend.orders, 1)
	order := backend.orders[1]
	assert.Equal(t, models.OrderStatusPreorder, order.Status)
	assert.Equal(t, int64(11), order.SellerID)
	assert.True(t, order.TotalAmount.Equal(dec("30")))

	items := backend.items[order.ID]
	require.Len(t, items, 1)
	assert.True(t, items[0].Subtotal.Equal(dec("30")))

	// checkout never consumes stock and clears the cart on success
	assert.True(t, stock.point[stockKey{7, 1}].Equal(before))
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.SelectedPoint())
}

func TestItemWriteFailureRollsBackOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.failItems = true
	stock := &fakeStock{point: map[stockKey]decimal.Decimal{{7, 1}: dec("5")}}
	c := loadedCart(t)
	o := NewOrchestrator(c, availability.NewOracle(stock), backend, nil)

	res := o.CreateOrder(context.Background(), request())
	assert.False(t, res.Success)
	assert.Empty(t, backend.orders)
	assert.Equal(t, int64(1), backend.deletedOrder)

	// cart survives so the customer can retry
	assert.False(t, c.IsEmpty())
}

func TestFallbackOrderCode(t *testing.T) {
	backend := newFakeBackend()
	backend.failCodeGen = true
	stock := &fakeStock{point: map[stockKey]decimal.Decimal{{7, 1}: dec("5")}}
	c := loadedCart(t)
	o := NewOrchestrator(c, availability.NewOracle(stock), backend, nil)

	res := o.CreateOrder(context.Background(), request())
	require.True(t, res.Success)
	assert.Regexp(t, `^\d{8}$`, res.OrderCode)
}

func TestPointMismatchRejected(t *testing.T) {
	backend := newFakeBackend()
	stock := &fakeStock{point: map[stockKey]decimal.Decimal{{7, 1}: dec("5")}}
	c := loadedCart(t)
	o := NewOrchestrator(c, availability.NewOracle(stock), backend, nil)

	req := request()
	req.PointID = 8
	res := o.CreateOrder(context.Background(), req)
	assert.False(t, res.Success)
	assert.Empty(t, backend.orders)
	assert.False(t, c.IsEmpty())
}

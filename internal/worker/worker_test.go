package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cart-service/internal/availability"
	"cart-service/internal/confirmation"
	"cart-service/internal/models"
)

// expiryFake backs the confirmation machine and the expiry listing in one
// place so the sweep drives the real rejection path.
type expiryFake struct {
	orders map[int64]*models.Order
}

func (f *expiryFake) OrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	cp := *o
	return &cp, nil
}

func (f *expiryFake) OrderItemsByOrderID(context.Context, int64) ([]models.OrderItem, error) {
	return nil, nil
}

func (f *expiryFake) TransitionOrderStatus(_ context.Context, orderID int64, from, to, reason string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.RejectReason = reason
	return true, nil
}

func (f *expiryFake) DecrementStock(context.Context, int64, int64, decimal.Decimal) error {
	return nil
}

func (f *expiryFake) PointStock(context.Context, int64, int64) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (f *expiryFake) GlobalStock(context.Context, int64) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (f *expiryFake) StalePreorders(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	var stale []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPreorder && o.CreatedAt.Before(cutoff) {
			stale = append(stale, *o)
		}
	}
	return stale, nil
}

func TestSweepExpiresOnlyStalePreorders(t *testing.T) {
	fake := &expiryFake{orders: map[int64]*models.Order{
		1: {ID: 1, Status: models.OrderStatusPreorder, OrderCode: "ORD-000001",
			CreatedAt: time.Now().Add(-72 * time.Hour)},
		2: {ID: 2, Status: models.OrderStatusPreorder, OrderCode: "ORD-000002",
			CreatedAt: time.Now().Add(-1 * time.Hour)},
		3: {ID: 3, Status: models.OrderStatusConfirmed, OrderCode: "ORD-000003",
			CreatedAt: time.Now().Add(-72 * time.Hour)},
	}}

	machine := confirmation.NewMachine(fake, availability.NewOracle(fake), nil)
	w := NewExpiryWorker(fake, machine, time.Minute, 48*time.Hour)

	w.sweep(context.Background())

	assert.Equal(t, models.OrderStatusRejected, fake.orders[1].Status)
	assert.Equal(t, models.RejectReasonExpired, fake.orders[1].RejectReason)

	// fresh preorders and already-resolved orders are untouched
	assert.Equal(t, models.OrderStatusPreorder, fake.orders[2].Status)
	assert.Equal(t, models.OrderStatusConfirmed, fake.orders[3].Status)
}

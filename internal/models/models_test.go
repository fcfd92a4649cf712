package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cart-service/internal/quantity"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPreorder, OrderStatusConfirmed))
	assert.True(t, CanTransition(OrderStatusPreorder, OrderStatusRejected))
	assert.True(t, CanTransition(OrderStatusConfirmed, OrderStatusReady))
	assert.True(t, CanTransition(OrderStatusReady, OrderStatusCompleted))

	assert.False(t, CanTransition(OrderStatusRejected, OrderStatusConfirmed))
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusPreorder))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusCancelled))
	assert.False(t, CanTransition("BOGUS", OrderStatusConfirmed))
}

func TestProductEffectivePrice(t *testing.T) {
	p := &Product{
		Price:         decimal.RequireFromString("20"),
		DiscountKind:  quantity.DiscountPercent,
		DiscountValue: decimal.RequireFromString("25"),
	}
	assert.True(t, p.EffectivePrice().Equal(decimal.RequireFromString("15")))
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpposite(t *testing.T) {
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
}

func TestConditional(t *testing.T) {
	assert.False(t, OrderTypeMarket.Conditional())
	assert.True(t, OrderTypeLimit.Conditional())
	assert.True(t, OrderTypeStop.Conditional())
	assert.True(t, OrderTypeStopLimit.Conditional())
	assert.False(t, OrderTypeTakeProfit.Conditional())
}

func TestTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired} {
		assert.True(t, s.Terminal(), string(s))
	}
	assert.False(t, OrderStatusPending.Terminal())
}

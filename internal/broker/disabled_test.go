package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledAdapterRefusesEverything(t *testing.T) {
	a := NewDisabledAdapter()

	_, err := a.PlaceOrder(context.Background(), OrderRequest{Symbol: "BTC/USD"})
	assert.ErrorIs(t, err, ErrVenueDisabled)

	assert.ErrorIs(t, a.CancelOrder(context.Background(), "x"), ErrVenueDisabled)
}

package broker

import (
	"context"
	"errors"
)

// ErrVenueDisabled is what every call returns: no order ever reaches a
// real market from this system.
var ErrVenueDisabled = errors.New("venue routing is disabled: execution is simulated")

type DisabledAdapter struct{}

func NewDisabledAdapter() *DisabledAdapter {
	return &DisabledAdapter{}
}

func (a *DisabledAdapter) PlaceOrder(_ context.Context, _ OrderRequest) (OrderResponse, error) {
	return OrderResponse{}, ErrVenueDisabled
}

func (a *DisabledAdapter) CancelOrder(_ context.Context, _ string) error {
	return ErrVenueDisabled
}

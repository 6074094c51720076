package broker

import "context"

type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Price         string
	Size          string
}

type OrderResponse struct {
	VenueOrderID string
	Status       string
}

// Adapter is the seam where real venue connectivity would plug in. The
// engine simulates every fill internally, so the only shipped
// implementation is the disabled adapter.
type Adapter interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
	CancelOrder(ctx context.Context, venueOrderID string) error
}

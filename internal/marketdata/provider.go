package marketdata

import (
	"context"
	"errors"

	"lv-simtrade/internal/model"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a provider has no current price for a symbol.
var ErrNoPrice = errors.New("no price for symbol")

// PriceProvider supplies the reference mid price the engine marks against.
// The engine never invents prices itself; everything downstream (quotes,
// fills, P&L) derives from what this interface returns.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, ins *model.Instrument) (decimal.Decimal, error)
}

package marketdata

import (
	"context"
	"math/rand"
	"testing"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/quotes"
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	return NewFeed(quotes.DefaultTable(), NewBus(), rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestCurrentPriceFromSeed(t *testing.T) {
	f := newTestFeed(t)
	px, err := f.CurrentPrice(context.Background(), &model.Instrument{Symbol: "BTC/USD"})
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(50000)))
}

func TestCurrentPriceUnknownSymbol(t *testing.T) {
	f := newTestFeed(t)
	_, err := f.CurrentPrice(context.Background(), &model.Instrument{Symbol: "DOGE/USD"})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestSetPriceOverrides(t *testing.T) {
	f := newTestFeed(t)
	f.SetPrice("BTC/USD", decimal.NewFromInt(60000))
	px, err := f.CurrentPrice(context.Background(), &model.Instrument{Symbol: "BTC/USD"})
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(60000)))
}

func TestTickWalksWithinStepAndPublishes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	f := NewFeed(quotes.DefaultTable(), bus, rand.New(rand.NewSource(7)), zap.NewNop(),
		WithMaxStep(decimal.NewFromFloat(0.001)))

	ins := &model.Instrument{Symbol: "ETH/USD", Type: types.InstrumentTypeCrypto}
	before, _ := f.CurrentPrice(context.Background(), ins)

	f.tick([]*model.Instrument{ins})

	after, _ := f.CurrentPrice(context.Background(), ins)
	move := after.Sub(before).Abs()
	assert.True(t, move.LessThanOrEqual(before.Mul(decimal.NewFromFloat(0.001))), "move %s too large", move)
	assert.True(t, after.GreaterThan(decimal.Zero))

	evt := <-sub
	require.Equal(t, "quote", evt.Type)
	q, ok := evt.Data.(QuoteEvent)
	require.True(t, ok)
	assert.Equal(t, "ETH/USD", q.Symbol)
	assert.NotEmpty(t, q.Bid)
	assert.NotEmpty(t, q.Ask)
}

func TestTickSkipsUnknownSymbols(t *testing.T) {
	f := newTestFeed(t)
	f.tick([]*model.Instrument{{Symbol: "UNKNOWN"}})
	_, err := f.CurrentPrice(context.Background(), &model.Instrument{Symbol: "UNKNOWN"})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < 250; i++ {
		bus.Publish(Event{Type: "quote"})
	}
	// The buffer holds 100; the rest were dropped without blocking.
	assert.Equal(t, 100, len(sub))
}

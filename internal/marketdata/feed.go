package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/quotes"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultSeedPrices are the starting marks for the built-in instrument set.
var DefaultSeedPrices = map[string]decimal.Decimal{
	"BTC/USD": decimal.NewFromInt(50000),
	"ETH/USD": decimal.NewFromInt(3000),
	"EUR/USD": decimal.NewFromFloat(1.0850),
	"GBP/USD": decimal.NewFromFloat(1.2500),
	"USD/JPY": decimal.NewFromFloat(150.00),
	"GOLD":    decimal.NewFromFloat(1950.00),
	"SPX":     decimal.NewFromInt(4200),
	"NASDAQ":  decimal.NewFromInt(14000),
	"AAPL":    decimal.NewFromFloat(180.00),
	"TSLA":    decimal.NewFromFloat(250.00),
}

// Feed is an in-process random-walk price source. Each tick nudges every
// symbol by a small uniform step, so prices wander but never jump. It
// implements PriceProvider for the execution path and publishes quote
// events on the bus for streaming clients.
type Feed struct {
	spreads  quotes.Table
	bus      *Bus
	logger   *zap.Logger
	interval time.Duration
	maxStep  decimal.Decimal

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	rng    *rand.Rand
}

type FeedOption func(*Feed)

func WithInterval(d time.Duration) FeedOption {
	return func(f *Feed) { f.interval = d }
}

// WithMaxStep bounds the per-tick move as a fraction of the current price.
func WithMaxStep(pct decimal.Decimal) FeedOption {
	return func(f *Feed) { f.maxStep = pct }
}

func WithSeedPrices(seed map[string]decimal.Decimal) FeedOption {
	return func(f *Feed) {
		f.prices = make(map[string]decimal.Decimal, len(seed))
		for sym, px := range seed {
			f.prices[sym] = px
		}
	}
}

func NewFeed(spreads quotes.Table, bus *Bus, rng *rand.Rand, logger *zap.Logger, opts ...FeedOption) *Feed {
	f := &Feed{
		spreads:  spreads,
		bus:      bus,
		logger:   logger,
		interval: time.Second,
		maxStep:  decimal.NewFromFloat(0.0005),
		rng:      rng,
	}
	WithSeedPrices(DefaultSeedPrices)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CurrentPrice returns the latest mark for the instrument's symbol.
func (f *Feed) CurrentPrice(_ context.Context, ins *model.Instrument) (decimal.Decimal, error) {
	f.mu.RLock()
	px, ok := f.prices[ins.Symbol]
	f.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, ErrNoPrice
	}
	return px, nil
}

// SetPrice pins a symbol to an exact mark. Used by tests and admin tooling.
func (f *Feed) SetPrice(symbol string, px decimal.Decimal) {
	f.mu.Lock()
	f.prices[symbol] = px
	f.mu.Unlock()
}

// QuoteEvent is the wire payload for one streamed quote.
type QuoteEvent struct {
	Symbol    string `json:"symbol"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Mid       string `json:"mid"`
	Timestamp int64  `json:"timestamp"`
}

// Run ticks until the context is cancelled.
func (f *Feed) Run(ctx context.Context, instruments []*model.Instrument) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("price feed started",
		zap.Duration("interval", f.interval),
		zap.Int("instruments", len(instruments)))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price feed stopped")
			return
		case <-ticker.C:
			f.tick(instruments)
		}
	}
}

func (f *Feed) tick(instruments []*model.Instrument) {
	now := time.Now().UnixMilli()
	for _, ins := range instruments {
		f.mu.Lock()
		px, ok := f.prices[ins.Symbol]
		if !ok {
			f.mu.Unlock()
			continue
		}
		// Uniform step in [-maxStep, +maxStep] of the current price.
		factor := decimal.NewFromFloat(f.rng.Float64()*2 - 1)
		px = px.Add(px.Mul(f.maxStep).Mul(factor))
		if px.LessThanOrEqual(decimal.Zero) {
			px = f.prices[ins.Symbol]
		}
		f.prices[ins.Symbol] = px
		f.mu.Unlock()

		if f.bus == nil {
			continue
		}
		q := f.spreads.Compute(ins.Type, px)
		f.bus.Publish(Event{Type: "quote", Data: QuoteEvent{
			Symbol:    ins.Symbol,
			Bid:       q.Bid.String(),
			Ask:       q.Ask.String(),
			Mid:       q.Mid.String(),
			Timestamp: now,
		}})
	}
}

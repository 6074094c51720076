package simulator

import (
	"math/rand"
	"sync"

	"lv-simtrade/internal/quotes"
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Simulator decides whether, at what price, and at what cost an order
// executes against a synthetic venue. No order ever reaches a real market;
// fills, spreads and slippage are all computed here.
type Simulator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

type Config struct {
	Spreads     quotes.Table
	MaxSlippage map[types.OrderType]decimal.Decimal
	FeeRate     decimal.Decimal
}

// DefaultConfig returns the stock venue parameters: market orders slip up
// to 0.5%, stop orders up to 0.3%, limit orders never; taker fee 0.1% of
// notional on every fill.
func DefaultConfig() Config {
	return Config{
		Spreads: quotes.DefaultTable(),
		MaxSlippage: map[types.OrderType]decimal.Decimal{
			types.OrderTypeMarket: decimal.NewFromFloat(0.005),
			types.OrderTypeStop:   decimal.NewFromFloat(0.003),
			types.OrderTypeLimit:  decimal.Zero,
		},
		FeeRate: decimal.NewFromFloat(0.001),
	}
}

// New builds a simulator around an injected random source so fill outcomes
// are reproducible under a fixed seed.
func New(cfg Config, rng *rand.Rand) *Simulator {
	if cfg.Spreads == nil {
		cfg.Spreads = quotes.DefaultTable()
	}
	if cfg.MaxSlippage == nil {
		cfg.MaxSlippage = DefaultConfig().MaxSlippage
	}
	if cfg.FeeRate.IsZero() {
		cfg.FeeRate = DefaultConfig().FeeRate
	}
	return &Simulator{cfg: cfg, rng: rng}
}

// Request is one evaluation of an order intent against the current mark
// price. Evaluations are stateless: a stop that does not trigger now leaves
// nothing armed and is re-derived in full on the next call.
type Request struct {
	Type       types.OrderType
	Side       types.OrderSide
	Size       decimal.Decimal
	MarkPrice  decimal.Decimal
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
	Instrument types.InstrumentType

	// SpreadPct and FeeRate override the per-class table and the venue fee
	// for instruments that carry their own figures. Nil means table values.
	SpreadPct *decimal.Decimal
	FeeRate   *decimal.Decimal

	Leverage int64
}

// Outcome is the result of a single evaluation. Status is one of
// filled / pending / rejected; money fields are set only for fills.
type Outcome struct {
	Status         types.OrderStatus
	Reason         string
	FillPrice      decimal.Decimal
	FilledSize     decimal.Decimal
	Notional       decimal.Decimal
	MarginRequired decimal.Decimal
	Fee            decimal.Decimal
	Slippage       decimal.Decimal
}

func pending(reason string) Outcome {
	return Outcome{Status: types.OrderStatusPending, Reason: reason, FilledSize: decimal.Zero}
}

func rejected(reason string) Outcome {
	return Outcome{Status: types.OrderStatusRejected, Reason: reason}
}

// Quote derives the venue bid/ask for an instrument class at a mark price.
func (s *Simulator) Quote(it types.InstrumentType, mark decimal.Decimal) quotes.Quote {
	return s.cfg.Spreads.Compute(it, mark)
}

// FeeRate exposes the taker fee rate for callers pricing a close.
func (s *Simulator) FeeRate() decimal.Decimal {
	return s.cfg.FeeRate
}

// Simulate evaluates an order against the current mark price.
//
// Market orders always fill at the touch plus adverse slippage. Limit
// orders fill only when the limit is at least as good as the touch, at the
// better of the two. Stop orders fill at the touch once the mark has moved
// through the stop level. Stop-limit requires the stop condition and a
// satisfiable limit in the same evaluation.
func (s *Simulator) Simulate(req Request) Outcome {
	q := s.Quote(req.Instrument, req.MarkPrice)
	if req.SpreadPct != nil && !req.SpreadPct.IsZero() {
		q = quotes.ComputeWithPct(req.MarkPrice, *req.SpreadPct)
	}

	var fillPrice, slippage decimal.Decimal

	switch req.Type {
	case types.OrderTypeMarket:
		base := q.Touch(req.Side)
		slippage = s.drawSlippage(types.OrderTypeMarket, req.Side, base)
		fillPrice = base.Add(slippage)

	case types.OrderTypeLimit:
		if req.LimitPrice == nil {
			return rejected("limit price required for limit order")
		}
		limit := *req.LimitPrice
		if req.Side == types.OrderSideBuy && limit.GreaterThanOrEqual(q.Ask) {
			fillPrice = decimal.Min(q.Ask, limit)
		} else if req.Side == types.OrderSideSell && limit.LessThanOrEqual(q.Bid) {
			fillPrice = decimal.Max(q.Bid, limit)
		} else {
			return pending("limit price not reached")
		}

	case types.OrderTypeStop:
		if req.StopPrice == nil {
			return rejected("stop price required for stop order")
		}
		if !stopTriggered(req.Side, req.MarkPrice, *req.StopPrice) {
			return pending("stop price not triggered")
		}
		base := q.Touch(req.Side)
		slippage = s.drawSlippage(types.OrderTypeStop, req.Side, base)
		fillPrice = base.Add(slippage)

	case types.OrderTypeStopLimit:
		if req.StopPrice == nil {
			return rejected("stop price required for stop order")
		}
		if req.LimitPrice == nil {
			return rejected("limit price required for stop-limit order")
		}
		if !stopTriggered(req.Side, req.MarkPrice, *req.StopPrice) {
			return pending("stop price not triggered")
		}
		// Stop fired; the limit must also be satisfiable right now. Nothing
		// is armed across evaluations, so a miss here re-checks both legs
		// on the next tick.
		limit := *req.LimitPrice
		if req.Side == types.OrderSideBuy && limit.GreaterThanOrEqual(q.Ask) {
			fillPrice = decimal.Min(q.Ask, limit)
		} else if req.Side == types.OrderSideSell && limit.LessThanOrEqual(q.Bid) {
			fillPrice = decimal.Max(q.Bid, limit)
		} else {
			return pending("stop triggered but limit price not reached")
		}

	default:
		return rejected("order type " + string(req.Type) + " not supported")
	}

	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	feeRate := s.cfg.FeeRate
	if req.FeeRate != nil && !req.FeeRate.IsZero() {
		feeRate = *req.FeeRate
	}
	notional := fillPrice.Mul(req.Size)
	return Outcome{
		Status:         types.OrderStatusFilled,
		FillPrice:      fillPrice,
		FilledSize:     req.Size,
		Notional:       notional,
		MarginRequired: notional.Div(decimal.NewFromInt(leverage)),
		Fee:            notional.Mul(feeRate),
		Slippage:       slippage,
	}
}

func stopTriggered(side types.OrderSide, mark, stop decimal.Decimal) bool {
	if side == types.OrderSideBuy {
		return mark.GreaterThanOrEqual(stop)
	}
	return mark.LessThanOrEqual(stop)
}

// drawSlippage draws a uniform fraction of the per-type maximum and signs
// it against the trader: buys pay more, sells receive less. The pessimistic
// bias is deliberate.
func (s *Simulator) drawSlippage(orderType types.OrderType, side types.OrderSide, price decimal.Decimal) decimal.Decimal {
	maxPct, ok := s.cfg.MaxSlippage[orderType]
	if !ok || maxPct.IsZero() {
		return decimal.Zero
	}
	s.mu.Lock()
	factor := s.rng.Float64()
	s.mu.Unlock()

	slip := price.Mul(maxPct).Mul(decimal.NewFromFloat(factor))
	if side == types.OrderSideSell {
		return slip.Neg()
	}
	return slip
}

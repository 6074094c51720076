package quotes

import (
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Quote is an ephemeral bid/ask derived from a reference price. It is
// computed per call and never persisted.
type Quote struct {
	Mid       decimal.Decimal `json:"mid"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	SpreadPct decimal.Decimal `json:"spread_pct"`
}

// Table maps an asset class to its spread percentage.
type Table map[types.InstrumentType]decimal.Decimal

// DefaultSpreadPct applies to unknown asset classes.
var DefaultSpreadPct = decimal.NewFromFloat(0.001) // 0.1%

// DefaultTable returns the stock spread configuration: forex 2 pips,
// crypto 0.1%, stock 0.05%, index 0.03%, commodity 0.08%.
func DefaultTable() Table {
	return Table{
		types.InstrumentTypeForex:     decimal.NewFromFloat(0.0002),
		types.InstrumentTypeCrypto:    decimal.NewFromFloat(0.001),
		types.InstrumentTypeStock:     decimal.NewFromFloat(0.0005),
		types.InstrumentTypeIndex:     decimal.NewFromFloat(0.0003),
		types.InstrumentTypeCommodity: decimal.NewFromFloat(0.0008),
	}
}

// SpreadPct returns the spread for the asset class, falling back to the
// default for classes not in the table.
func (t Table) SpreadPct(it types.InstrumentType) decimal.Decimal {
	if pct, ok := t[it]; ok {
		return pct
	}
	return DefaultSpreadPct
}

// Compute derives bid/ask around mid. Pure function; exact decimal
// arithmetic so spreads never drift across millions of quotes.
func (t Table) Compute(it types.InstrumentType, mid decimal.Decimal) Quote {
	return ComputeWithPct(mid, t.SpreadPct(it))
}

// ComputeWithPct derives bid/ask around mid with an explicit spread, for
// instruments carrying a per-instrument override.
func ComputeWithPct(mid, spreadPct decimal.Decimal) Quote {
	half := mid.Mul(spreadPct).Div(decimal.NewFromInt(2))
	return Quote{
		Mid:       mid,
		Bid:       mid.Sub(half),
		Ask:       mid.Add(half),
		SpreadPct: spreadPct,
	}
}

// Touch returns the price a taker crosses at: ask for a buy, bid for a sell.
func (q Quote) Touch(side types.OrderSide) decimal.Decimal {
	if side == types.OrderSideBuy {
		return q.Ask
	}
	return q.Bid
}

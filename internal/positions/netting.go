package positions

import (
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/simulator"
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Fill is an executed order slice applied to the account's exposure on one
// instrument.
type Fill struct {
	OrderID  string
	Side     types.OrderSide
	Size     decimal.Decimal
	Price    decimal.Decimal
	Leverage int64
	At       time.Time
}

// Result describes what a fill did to the exposure. Updated is the position
// after the fill (nil when it no longer exists), Opened is a brand-new
// reverse position created when the fill overshot the old size. MarginDelta
// is signed: positive reserves margin, negative releases it. Realized is the
// P&L locked in by any closed portion, before fees.
type Result struct {
	Updated     *model.Position
	Opened      *model.Position
	Realized    decimal.Decimal
	MarginDelta decimal.Decimal
	ClosedSize  decimal.Decimal
	FullyClosed bool
}

func marginFor(price, size decimal.Decimal, leverage int64) decimal.Decimal {
	if leverage <= 0 {
		leverage = 1
	}
	return price.Mul(size).Div(decimal.NewFromInt(leverage))
}

// ApplyFill nets a fill against the current open position on the same
// instrument. pos is nil when no position is open. Pure function: the caller
// owns persistence, ids for new positions, and the ledger write.
//
// A position never holds mixed sides. Same-side fills increase size and
// re-average the entry price. Opposite-side fills close from the front:
// smaller than the position closes part of it, equal closes all of it, and
// larger closes all of it and opens a new position on the other side with
// the remainder at the fill price.
func ApplyFill(pos *model.Position, accountID, instrumentID string, fill Fill) Result {
	if fill.At.IsZero() {
		fill.At = time.Now().UTC()
	}

	if pos == nil || pos.Status != types.PositionStatusOpen {
		opened := newPosition(accountID, instrumentID, fill)
		return Result{
			Opened:      opened,
			MarginDelta: opened.MarginUsed,
		}
	}

	if pos.Side == fill.Side {
		return increase(pos, fill)
	}

	switch {
	case fill.Size.LessThan(pos.Size):
		return partialClose(pos, fill)
	case fill.Size.Equal(pos.Size):
		return fullClose(pos, fill)
	default:
		return overshoot(pos, accountID, instrumentID, fill)
	}
}

func newPosition(accountID, instrumentID string, fill Fill) *model.Position {
	leverage := fill.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	return &model.Position{
		AccountID:     accountID,
		InstrumentID:  instrumentID,
		Side:          fill.Side,
		Status:        types.PositionStatusOpen,
		Size:          fill.Size,
		EntryPrice:    fill.Price,
		CurrentPrice:  fill.Price,
		Leverage:      leverage,
		MarginUsed:    marginFor(fill.Price, fill.Size, leverage),
		OpenedAt:      fill.At,
		LastUpdatedAt: fill.At,
	}
}

// increase grows a same-side position. The entry becomes the size-weighted
// average of old and new, so unrealized P&L is unchanged at the moment of
// the fill.
func increase(pos *model.Position, fill Fill) Result {
	oldNotional := pos.EntryPrice.Mul(pos.Size)
	addNotional := fill.Price.Mul(fill.Size)
	newSize := pos.Size.Add(fill.Size)

	addMargin := marginFor(fill.Price, fill.Size, pos.Leverage)

	pos.EntryPrice = oldNotional.Add(addNotional).Div(newSize)
	pos.Size = newSize
	pos.CurrentPrice = fill.Price
	pos.MarginUsed = pos.MarginUsed.Add(addMargin)
	pos.LastUpdatedAt = fill.At

	return Result{Updated: pos, MarginDelta: addMargin}
}

func partialClose(pos *model.Position, fill Fill) Result {
	realized := simulator.PnL(pos.Side, pos.EntryPrice, fill.Price, fill.Size)

	// Margin releases pro rata against the closed fraction.
	released := pos.MarginUsed.Mul(fill.Size).Div(pos.Size)

	pos.Size = pos.Size.Sub(fill.Size)
	pos.MarginUsed = pos.MarginUsed.Sub(released)
	pos.CurrentPrice = fill.Price
	if pos.RealizedPnL == nil {
		pos.RealizedPnL = &decimal.Decimal{}
	}
	total := pos.RealizedPnL.Add(realized)
	pos.RealizedPnL = &total
	pos.UnrealizedPnL = simulator.PnL(pos.Side, pos.EntryPrice, fill.Price, pos.Size)
	pos.UnrealizedPnLPct = simulator.PnLPercent(pos.Side, pos.EntryPrice, fill.Price, pos.Leverage)
	pos.LastUpdatedAt = fill.At

	return Result{
		Updated:     pos,
		Realized:    realized,
		MarginDelta: released.Neg(),
		ClosedSize:  fill.Size,
	}
}

func fullClose(pos *model.Position, fill Fill) Result {
	realized := simulator.PnL(pos.Side, pos.EntryPrice, fill.Price, pos.Size)
	released := pos.MarginUsed
	closedSize := pos.Size

	pos.Status = types.PositionStatusClosed
	pos.Size = decimal.Zero
	pos.MarginUsed = decimal.Zero
	pos.CurrentPrice = fill.Price
	pos.UnrealizedPnL = decimal.Zero
	pos.UnrealizedPnLPct = decimal.Zero
	if pos.RealizedPnL == nil {
		pos.RealizedPnL = &decimal.Decimal{}
	}
	total := pos.RealizedPnL.Add(realized)
	pos.RealizedPnL = &total
	closedAt := fill.At
	pos.ClosedAt = &closedAt
	pos.LastUpdatedAt = fill.At

	return Result{
		Updated:     pos,
		Realized:    realized,
		MarginDelta: released.Neg(),
		ClosedSize:  closedSize,
		FullyClosed: true,
	}
}

// overshoot closes the whole position and opens a fresh one on the other
// side with what is left of the fill, at the fill price.
func overshoot(pos *model.Position, accountID, instrumentID string, fill Fill) Result {
	residual := fill.Size.Sub(pos.Size)

	closing := fill
	closing.Size = pos.Size
	res := fullClose(pos, closing)

	openFill := fill
	openFill.Size = residual
	if openFill.Leverage <= 0 {
		openFill.Leverage = pos.Leverage
	}
	opened := newPosition(accountID, instrumentID, openFill)

	res.Opened = opened
	res.MarginDelta = res.MarginDelta.Add(opened.MarginUsed)
	return res
}

// MarkToMarket refreshes the unrealized P&L fields against a new mark price.
func MarkToMarket(pos *model.Position, mark decimal.Decimal, at time.Time) {
	pos.CurrentPrice = mark
	pos.UnrealizedPnL = simulator.PnL(pos.Side, pos.EntryPrice, mark, pos.Size)
	pos.UnrealizedPnLPct = simulator.PnLPercent(pos.Side, pos.EntryPrice, mark, pos.Leverage)
	pos.LastUpdatedAt = at
}

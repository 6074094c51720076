package model

import (
	"time"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Position is a single open exposure per (account, instrument). A position
// never holds mixed sides: an opposite-side fill larger than the current
// size closes it and a brand-new position is opened for the remainder.
type Position struct {
	ID           string               `json:"id"`
	AccountID    string               `json:"account_id"`
	InstrumentID string               `json:"instrument_id"`
	Side         types.OrderSide      `json:"side"`
	Status       types.PositionStatus `json:"status"`
	Size         decimal.Decimal      `json:"size"`
	EntryPrice   decimal.Decimal      `json:"entry_price"`
	CurrentPrice decimal.Decimal      `json:"current_price"`
	Leverage     int64                `json:"leverage"`
	MarginUsed   decimal.Decimal      `json:"margin_used"`

	UnrealizedPnL    decimal.Decimal  `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal  `json:"unrealized_pnl_pct"`
	RealizedPnL      *decimal.Decimal `json:"realized_pnl"`

	SLPrice *decimal.Decimal `json:"sl_price"`
	TPPrice *decimal.Decimal `json:"tp_price"`

	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

package model

import (
	"time"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Order is a trading intent and its simulated outcome. Every order is
// virtual: nothing here ever reaches a real venue.
type Order struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id"`
	InstrumentID string            `json:"instrument_id"`
	Side         types.OrderSide   `json:"side"`
	Type         types.OrderType   `json:"type"`
	Status       types.OrderStatus `json:"status"`
	Size         decimal.Decimal   `json:"size"`
	Price        *decimal.Decimal  `json:"price"`
	StopPrice    *decimal.Decimal  `json:"stop_price"`
	SLPrice      *decimal.Decimal  `json:"sl_price"`
	TPPrice      *decimal.Decimal  `json:"tp_price"`
	Leverage     int64             `json:"leverage"`

	// Execution fields, immutable once Status is terminal.
	FilledSize     decimal.Decimal  `json:"filled_size"`
	FillPrice      *decimal.Decimal `json:"fill_price"`
	Fee            decimal.Decimal  `json:"fee"`
	Slippage       decimal.Decimal  `json:"slippage"`
	RealizedPnL    *decimal.Decimal `json:"pnl"`
	MarginRequired decimal.Decimal  `json:"margin_required"`
	RejectReason   string           `json:"reject_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	FilledAt    *time.Time `json:"filled_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

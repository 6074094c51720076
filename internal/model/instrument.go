package model

import (
	"time"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// Instrument is reference data owned by the market-data collaborator; the
// engine only reads it.
type Instrument struct {
	ID     string               `json:"id"`
	Symbol string               `json:"symbol"`
	Name   string               `json:"name"`
	Type   types.InstrumentType `json:"type"`

	MinSize     decimal.Decimal `json:"min_size"`
	MaxSize     decimal.Decimal `json:"max_size"`
	TickSize    decimal.Decimal `json:"tick_size"`
	MaxLeverage int64           `json:"max_leverage"`

	// Per-instrument overrides; zero means "use the per-class table".
	SpreadPct     decimal.Decimal `json:"spread_pct"`
	CommissionPct decimal.Decimal `json:"commission_pct"`

	IsActive    bool `json:"is_active"`
	IsTradeable bool `json:"is_tradeable"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account carries the simulated trading balance. DepositedAmount is the
// real-money column owned by the payments collaborator; this engine only
// reads it. VirtualBalance is what the account trades with and is mutated
// exclusively by the ledger writer.
type Account struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`

	DepositedAmount decimal.Decimal `json:"deposited_amount"`
	VirtualBalance  decimal.Decimal `json:"virtual_balance"`
	EquityCached    decimal.Decimal `json:"equity_cached"`
	MarginUsed      decimal.Decimal `json:"margin_used"`
	MarginAvailable decimal.Decimal `json:"margin_available"`

	TotalTrades   int64           `json:"total_trades"`
	WinningTrades int64           `json:"winning_trades"`
	LosingTrades  int64           `json:"losing_trades"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`

	IsActive bool `json:"is_active"`
	IsFrozen bool `json:"is_frozen"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastTradeAt *time.Time `json:"last_trade_at"`
}

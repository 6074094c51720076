package model

import (
	"time"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one immutable record of a balance-affecting event.
// Summing all entries for an account in creation order and adding the
// initial balance must equal virtual_balance at every point in time.
type LedgerEntry struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`

	EntryType    types.LedgerEntryType `json:"entry_type"`
	Amount       decimal.Decimal       `json:"amount"`
	BalanceAfter decimal.Decimal       `json:"balance_after"`
	Description  string                `json:"description"`

	ReferenceType types.ReferenceType `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`

	CreatedAt time.Time `json:"created_at"`
}

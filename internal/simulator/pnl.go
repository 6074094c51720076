package simulator

import (
	"fmt"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
)

// PnL returns the profit or loss of a position slice marked at px.
// Long: (px - entry) * size. Short: (entry - px) * size.
func PnL(side types.OrderSide, entry, px, size decimal.Decimal) decimal.Decimal {
	if side == types.OrderSideBuy {
		return px.Sub(entry).Mul(size)
	}
	return entry.Sub(px).Mul(size)
}

// PnLPercent returns the percentage P&L metric. Leverage scales the
// percentage only; the notional P&L amount is already leverage-implicit
// via margin sizing.
func PnLPercent(side types.OrderSide, entry, px decimal.Decimal, leverage int64) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	if leverage <= 0 {
		leverage = 1
	}
	diff := px.Sub(entry)
	if side == types.OrderSideSell {
		diff = entry.Sub(px)
	}
	return diff.Div(entry).Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(leverage))
}

// DefaultMaintenanceMarginPct is the maintenance requirement used when the
// risk collaborator supplies none (50%).
var DefaultMaintenanceMarginPct = decimal.NewFromFloat(0.5)

// CheckMarginCall reports whether the account is under-margined. It is a
// predicate only: acting on it (liquidation) belongs to an external risk
// collaborator, never to this engine.
func CheckMarginCall(balance, marginUsed, unrealizedPnL, maintenancePct decimal.Decimal) (bool, string) {
	if maintenancePct.IsZero() {
		maintenancePct = DefaultMaintenanceMarginPct
	}
	equity := balance.Add(unrealizedPnL)

	marginLevel := decimal.NewFromInt(999)
	if marginUsed.GreaterThan(decimal.Zero) {
		marginLevel = equity.Div(marginUsed).Mul(decimal.NewFromInt(100))
	}

	if marginLevel.LessThan(maintenancePct.Mul(decimal.NewFromInt(100))) {
		return true, fmt.Sprintf("margin level %s%% below requirement", marginLevel.StringFixed(2))
	}
	if equity.LessThanOrEqual(decimal.Zero) {
		return true, "account equity is zero or negative"
	}
	return false, ""
}

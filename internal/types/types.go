package types

type OrderSide string

type OrderType string

type OrderStatus string

type PositionStatus string

type InstrumentType string

type LedgerEntryType string

type ReferenceType string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side of the market.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTakeProfit   OrderType = "take_profit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
	OrderTypeOCO          OrderType = "oco"
)

// Conditional reports whether the order rests until a price condition fires.
func (t OrderType) Conditional() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return true
	}
	return false
}

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether the status admits no further transition.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

const (
	InstrumentTypeForex     InstrumentType = "forex"
	InstrumentTypeCrypto    InstrumentType = "crypto"
	InstrumentTypeStock     InstrumentType = "stock"
	InstrumentTypeIndex     InstrumentType = "index"
	InstrumentTypeCommodity InstrumentType = "commodity"
)

const (
	LedgerEntryTypeDeposit         LedgerEntryType = "deposit"
	LedgerEntryTypeWithdrawal      LedgerEntryType = "withdrawal"
	LedgerEntryTypeAdminAdjustment LedgerEntryType = "admin_adjustment"
	LedgerEntryTypeTradePnL        LedgerEntryType = "trade_pnl"
	LedgerEntryTypeFee             LedgerEntryType = "fee"
	LedgerEntryTypeBonus           LedgerEntryType = "bonus"
	LedgerEntryTypeCorrection      LedgerEntryType = "correction"
)

const (
	ReferenceTypeOrder    ReferenceType = "order"
	ReferenceTypePosition ReferenceType = "position"
	ReferenceTypeDeposit  ReferenceType = "deposit"
)

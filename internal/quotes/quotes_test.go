package quotes

import (
	"testing"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSpreadSymmetry(t *testing.T) {
	table := DefaultTable()
	mid := decimal.NewFromInt(50000)

	for _, it := range []types.InstrumentType{
		types.InstrumentTypeForex,
		types.InstrumentTypeCrypto,
		types.InstrumentTypeStock,
		types.InstrumentTypeIndex,
		types.InstrumentTypeCommodity,
	} {
		q := table.Compute(it, mid)
		wantSpread := mid.Mul(table.SpreadPct(it))
		assert.True(t, q.Ask.Sub(q.Bid).Equal(wantSpread), "class %s: ask-bid=%s want %s", it, q.Ask.Sub(q.Bid), wantSpread)
		assert.True(t, q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2)).Equal(mid), "class %s: mid off center", it)
		assert.True(t, q.Bid.LessThan(q.Ask))
	}
}

func TestComputeCryptoValues(t *testing.T) {
	q := DefaultTable().Compute(types.InstrumentTypeCrypto, decimal.NewFromInt(50000))
	// 0.1% spread on 50000 is 50, so 25 each side.
	require.True(t, q.Bid.Equal(decimal.NewFromInt(49975)), "bid %s", q.Bid)
	require.True(t, q.Ask.Equal(decimal.NewFromInt(50025)), "ask %s", q.Ask)
}

func TestUnknownClassFallsBackToDefault(t *testing.T) {
	q := DefaultTable().Compute(types.InstrumentType("bond"), decimal.NewFromInt(1000))
	assert.True(t, q.SpreadPct.Equal(DefaultSpreadPct))
	assert.True(t, q.Ask.Sub(q.Bid).Equal(decimal.NewFromInt(1)))
}

func TestComputeWithPctOverride(t *testing.T) {
	q := ComputeWithPct(decimal.NewFromInt(1000), decimal.NewFromFloat(0.01))
	assert.True(t, q.Ask.Sub(q.Bid).Equal(decimal.NewFromInt(10)))
	assert.True(t, q.SpreadPct.Equal(decimal.NewFromFloat(0.01)))
}

func TestTouch(t *testing.T) {
	q := DefaultTable().Compute(types.InstrumentTypeCrypto, decimal.NewFromInt(50000))
	assert.True(t, q.Touch(types.OrderSideBuy).Equal(q.Ask))
	assert.True(t, q.Touch(types.OrderSideSell).Equal(q.Bid))
}

package positions

import (
	"testing"
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var fillAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func buy(size, price string) Fill {
	return Fill{Side: types.OrderSideBuy, Size: dec(size), Price: dec(price), Leverage: 10, At: fillAt}
}

func sell(size, price string) Fill {
	return Fill{Side: types.OrderSideSell, Size: dec(size), Price: dec(price), Leverage: 10, At: fillAt}
}

func TestFillWithNoPositionOpensOne(t *testing.T) {
	res := ApplyFill(nil, "acc1", "ins1", buy("2", "100"))

	require.NotNil(t, res.Opened)
	assert.Nil(t, res.Updated)
	assert.Equal(t, types.OrderSideBuy, res.Opened.Side)
	assert.True(t, res.Opened.Size.Equal(dec("2")))
	assert.True(t, res.Opened.EntryPrice.Equal(dec("100")))
	// 200 notional at 10x.
	assert.True(t, res.Opened.MarginUsed.Equal(dec("20")))
	assert.True(t, res.MarginDelta.Equal(dec("20")))
	assert.True(t, res.Realized.IsZero())
}

func TestSameSideFillReAveragesEntry(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", buy("1", "100")).Opened

	res := ApplyFill(pos, "acc1", "ins1", buy("1", "120"))

	require.NotNil(t, res.Updated)
	assert.True(t, res.Updated.Size.Equal(dec("2")))
	assert.True(t, res.Updated.EntryPrice.Equal(dec("110")), "entry %s", res.Updated.EntryPrice)
	// Added 120 notional at 10x on top of the initial 10.
	assert.True(t, res.MarginDelta.Equal(dec("12")))
	assert.True(t, res.Updated.MarginUsed.Equal(dec("22")))
	assert.True(t, res.Realized.IsZero())
}

func TestPartialCloseRealizesAndReleasesMargin(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", buy("4", "100")).Opened
	require.True(t, pos.MarginUsed.Equal(dec("40")))

	res := ApplyFill(pos, "acc1", "ins1", sell("1", "110"))

	require.NotNil(t, res.Updated)
	assert.Equal(t, types.PositionStatusOpen, res.Updated.Status)
	assert.True(t, res.Updated.Size.Equal(dec("3")))
	// Entry untouched by a close.
	assert.True(t, res.Updated.EntryPrice.Equal(dec("100")))
	assert.True(t, res.Realized.Equal(dec("10")))
	// A quarter of the margin comes back.
	assert.True(t, res.MarginDelta.Equal(dec("-10")))
	assert.True(t, res.Updated.MarginUsed.Equal(dec("30")))
	assert.False(t, res.FullyClosed)
	require.NotNil(t, res.Updated.RealizedPnL)
	assert.True(t, res.Updated.RealizedPnL.Equal(dec("10")))
}

func TestFullCloseZeroesPosition(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", sell("2", "100")).Opened

	res := ApplyFill(pos, "acc1", "ins1", buy("2", "90"))

	require.NotNil(t, res.Updated)
	assert.True(t, res.FullyClosed)
	assert.Equal(t, types.PositionStatusClosed, res.Updated.Status)
	assert.True(t, res.Updated.Size.IsZero())
	assert.True(t, res.Updated.MarginUsed.IsZero())
	// Short from 100 closed at 90 on size 2.
	assert.True(t, res.Realized.Equal(dec("20")))
	assert.True(t, res.MarginDelta.Equal(dec("-20")))
	require.NotNil(t, res.Updated.ClosedAt)
	assert.Nil(t, res.Opened)
}

func TestOvershootFlipsSide(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", buy("2", "100")).Opened

	res := ApplyFill(pos, "acc1", "ins1", sell("5", "110"))

	require.True(t, res.FullyClosed)
	assert.Equal(t, types.PositionStatusClosed, res.Updated.Status)
	// Long 2 from 100 closed at 110.
	assert.True(t, res.Realized.Equal(dec("20")))

	require.NotNil(t, res.Opened)
	assert.Equal(t, types.OrderSideSell, res.Opened.Side)
	assert.True(t, res.Opened.Size.Equal(dec("3")))
	assert.True(t, res.Opened.EntryPrice.Equal(dec("110")))
	assert.True(t, res.Opened.Size.GreaterThan(decimal.Zero))

	// Released 20, reserved 330/10 = 33 for the new short.
	assert.True(t, res.MarginDelta.Equal(dec("13")), "delta %s", res.MarginDelta)
}

func TestAccumulatedRealizedAcrossPartialCloses(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", buy("3", "100")).Opened

	ApplyFill(pos, "acc1", "ins1", sell("1", "110"))
	res := ApplyFill(pos, "acc1", "ins1", sell("2", "120"))

	require.True(t, res.FullyClosed)
	require.NotNil(t, res.Updated.RealizedPnL)
	// 10 from the first close plus 40 from the second.
	assert.True(t, res.Updated.RealizedPnL.Equal(dec("50")))
}

func TestMarkToMarket(t *testing.T) {
	pos := ApplyFill(nil, "acc1", "ins1", buy("2", "100")).Opened

	MarkToMarket(pos, dec("105"), fillAt.Add(time.Minute))

	assert.True(t, pos.UnrealizedPnL.Equal(dec("10")))
	// 5% move at 10x.
	assert.True(t, pos.UnrealizedPnLPct.Equal(dec("50")))
	assert.True(t, pos.CurrentPrice.Equal(dec("105")))
}

func TestFillOnClosedPositionOpensFresh(t *testing.T) {
	pos := &model.Position{Status: types.PositionStatusClosed, Side: types.OrderSideBuy}

	res := ApplyFill(pos, "acc1", "ins1", buy("1", "100"))

	require.NotNil(t, res.Opened)
	assert.Nil(t, res.Updated)
}

package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTx satisfies the slice of pgx.Tx the ledger writer touches: existence
// probes via QueryRow and entry/account writes via Exec. Everything else
// panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	existing bool
	inserts  [][]any
	flushes  [][]any
}

type boolRow struct{ val bool }

func (r boolRow) Scan(dest ...any) error {
	if b, ok := dest[0].(*bool); ok {
		*b = r.val
	}
	return nil
}

func (f *fakeTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return boolRow{val: f.existing}
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.HasPrefix(strings.TrimSpace(sql), "insert into ledger_entries"):
		f.inserts = append(f.inserts, args)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	default:
		f.flushes = append(f.flushes, args)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
}

func testAccount(balance string) *model.Account {
	b, _ := decimal.NewFromString(balance)
	return &model.Account{ID: "acc1", UserID: "u1", VirtualBalance: b}
}

func TestPostAppliesEffectSetOnce(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	tx := &fakeTx{}
	acc := testAccount("1000")

	err := svc.Post(context.Background(), tx, acc, Effects{
		Fee:         decimal.NewFromInt(1),
		RealizedPnL: decimal.NewFromInt(20),
		MarginDelta: decimal.NewFromInt(50),
	}, types.ReferenceTypeOrder, "ord1", "open 1 BTC/USD")
	require.NoError(t, err)

	require.Len(t, tx.inserts, 2)
	// Fee debits, P&L credits, each with a balance_after snapshot.
	fee := tx.inserts[0]
	assert.Equal(t, string(types.LedgerEntryTypeFee), fee[3])
	assert.True(t, fee[4].(decimal.Decimal).Equal(decimal.NewFromInt(-1)))
	assert.True(t, fee[5].(decimal.Decimal).Equal(decimal.NewFromInt(999)))
	pnl := tx.inserts[1]
	assert.Equal(t, string(types.LedgerEntryTypeTradePnL), pnl[3])
	assert.True(t, pnl[4].(decimal.Decimal).Equal(decimal.NewFromInt(20)))
	assert.True(t, pnl[5].(decimal.Decimal).Equal(decimal.NewFromInt(1019)))

	assert.True(t, acc.VirtualBalance.Equal(decimal.NewFromInt(1019)))
	assert.True(t, acc.MarginUsed.Equal(decimal.NewFromInt(50)))
	assert.True(t, acc.MarginAvailable.Equal(decimal.NewFromInt(969)))
	assert.Len(t, tx.flushes, 1)
}

func TestPostBalanceChangeEqualsEntrySum(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	tx := &fakeTx{}
	acc := testAccount("500")
	initial := acc.VirtualBalance

	err := svc.Post(context.Background(), tx, acc, Effects{
		Fee:         decimal.NewFromFloat(0.17),
		RealizedPnL: decimal.NewFromInt(-30),
		MarginDelta: decimal.NewFromInt(-20),
	}, types.ReferenceTypeOrder, "ord2", "close 2 BTC/USD")
	require.NoError(t, err)

	sum := decimal.Zero
	for _, args := range tx.inserts {
		sum = sum.Add(args[4].(decimal.Decimal))
	}
	assert.True(t, acc.VirtualBalance.Sub(initial).Equal(sum),
		"balance moved %s but entries sum to %s", acc.VirtualBalance.Sub(initial), sum)
	// Margin release never produces a balance entry.
	require.Len(t, tx.inserts, 2)
}

func TestPostReplayIsNoOpForWholeEffectSet(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	tx := &fakeTx{existing: true}
	acc := testAccount("1000")
	acc.MarginUsed = decimal.NewFromInt(50)

	err := svc.Post(context.Background(), tx, acc, Effects{
		Fee:         decimal.NewFromInt(1),
		RealizedPnL: decimal.NewFromInt(20),
		MarginDelta: decimal.NewFromInt(50),
	}, types.ReferenceTypeOrder, "ord1", "open 1 BTC/USD")
	require.NoError(t, err)

	assert.Empty(t, tx.inserts)
	assert.Empty(t, tx.flushes)
	assert.True(t, acc.VirtualBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, acc.MarginUsed.Equal(decimal.NewFromInt(50)))
}

func TestPostMarginFloorAtZero(t *testing.T) {
	svc := NewService(nil, zap.NewNop())
	tx := &fakeTx{}
	acc := testAccount("100")
	acc.MarginUsed = decimal.NewFromInt(10)

	err := svc.Post(context.Background(), tx, acc, Effects{
		RealizedPnL: decimal.NewFromInt(5),
		MarginDelta: decimal.NewFromInt(-15),
	}, types.ReferenceTypeOrder, "ord3", "close")
	require.NoError(t, err)
	assert.True(t, acc.MarginUsed.IsZero())
}

func TestRecordTradeStats(t *testing.T) {
	acc := &model.Account{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	RecordTradeStats(acc, decimal.NewFromInt(50), at)
	RecordTradeStats(acc, decimal.NewFromInt(-20), at)
	RecordTradeStats(acc, decimal.Zero, at)

	assert.Equal(t, int64(3), acc.TotalTrades)
	assert.Equal(t, int64(1), acc.WinningTrades)
	assert.Equal(t, int64(1), acc.LosingTrades)
	assert.True(t, acc.TotalPnL.Equal(decimal.NewFromInt(30)))
	require.NotNil(t, acc.LastTradeAt)
	assert.Equal(t, at, *acc.LastTradeAt)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "close 2.5 BTC/USD", Describe("close", "BTC/USD", decimal.NewFromFloat(2.5)))
}

func TestNewIDIsSortableAndUnique(t *testing.T) {
	a := newID()
	b := newID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

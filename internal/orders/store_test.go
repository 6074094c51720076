package orders

import (
	"context"
	"testing"
	"time"

	"lv-simtrade/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// casTx answers Exec with a fixed rows-affected count, standing in for the
// database's view of whether the guarded update matched a pending row.
type casTx struct {
	pgx.Tx
	rowsAffected int
	lastSQL      string
}

func (f *casTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	if f.rowsAffected == 0 {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func filledOrder() *model.Order {
	px := decimal.NewFromInt(100)
	now := time.Now().UTC()
	return &model.Order{
		ID:         "ord1",
		FilledSize: decimal.NewFromInt(1),
		FillPrice:  &px,
		FilledAt:   &now,
	}
}

func TestMarkFilledOnlyMovesPendingRows(t *testing.T) {
	store := NewStore(nil)

	tx := &casTx{rowsAffected: 1}
	applied, err := store.MarkFilled(context.Background(), tx, filledOrder())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Contains(t, tx.lastSQL, "status = 'pending'")

	// A row already terminal is left untouched and the caller told so.
	tx = &casTx{rowsAffected: 0}
	applied, err = store.MarkFilled(context.Background(), tx, filledOrder())
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMarkCancelledOnlyMovesPendingRows(t *testing.T) {
	store := NewStore(nil)

	tx := &casTx{rowsAffected: 1}
	applied, err := store.MarkCancelled(context.Background(), tx, "ord1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Contains(t, tx.lastSQL, "status = 'pending'")

	tx = &casTx{rowsAffected: 0}
	applied, err = store.MarkCancelled(context.Background(), tx, "ord1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, applied)
}

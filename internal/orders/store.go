package orders

import (
	"context"
	"errors"
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("order not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const orderColumns = `
	id, account_id, instrument_id, side, type, status,
	size, price, stop_price, sl_price, tp_price, leverage,
	filled_size, fill_price, fee, slippage, realized_pnl, margin_required, reject_reason,
	created_at, filled_at, cancelled_at, expires_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.AccountID, &o.InstrumentID, &o.Side, &o.Type, &o.Status,
		&o.Size, &o.Price, &o.StopPrice, &o.SLPrice, &o.TPPrice, &o.Leverage,
		&o.FilledSize, &o.FillPrice, &o.Fee, &o.Slippage, &o.RealizedPnL, &o.MarginRequired, &o.RejectReason,
		&o.CreatedAt, &o.FilledAt, &o.CancelledAt, &o.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) Insert(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	if o.ID == "" {
		o.ID = ulid.Make().String()
	}
	_, err := tx.Exec(ctx, `
		insert into orders (
			id, account_id, instrument_id, side, type, status,
			size, price, stop_price, sl_price, tp_price, leverage,
			filled_size, fill_price, fee, slippage, realized_pnl, margin_required, reject_reason,
			created_at, filled_at, cancelled_at, expires_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		o.ID, o.AccountID, o.InstrumentID, string(o.Side), string(o.Type), string(o.Status),
		o.Size, o.Price, o.StopPrice, o.SLPrice, o.TPPrice, o.Leverage,
		o.FilledSize, o.FillPrice, o.Fee, o.Slippage, o.RealizedPnL, o.MarginRequired, o.RejectReason,
		o.CreatedAt, o.FilledAt, o.CancelledAt, o.ExpiresAt)
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx, "select "+orderColumns+" from orders where id = $1", id)
	return scanOrder(row)
}

func (s *Store) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*model.Order, error) {
	row := tx.QueryRow(ctx, "select "+orderColumns+" from orders where id = $1 for update", id)
	return scanOrder(row)
}

// MarkFilled records the execution outcome. It is a compare-and-set on
// status = pending: a row already moved to a terminal status by a
// concurrent path is left untouched and false is returned.
func (s *Store) MarkFilled(ctx context.Context, tx pgx.Tx, o *model.Order) (bool, error) {
	tag, err := tx.Exec(ctx, `
		update orders set
			status = 'filled', filled_size = $2, fill_price = $3, fee = $4, slippage = $5,
			realized_pnl = $6, margin_required = $7, filled_at = $8
		where id = $1 and status = 'pending'`,
		o.ID, o.FilledSize, o.FillPrice, o.Fee, o.Slippage,
		o.RealizedPnL, o.MarginRequired, o.FilledAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled is the same compare-and-set for the cancel path.
func (s *Store) MarkCancelled(ctx context.Context, tx pgx.Tx, id string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		"update orders set status = 'cancelled', cancelled_at = $2 where id = $1 and status = 'pending'",
		id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingConditional returns resting orders oldest first. The sweep
// works through them in submission order so earlier orders get the price
// first.
func (s *Store) ListPendingConditional(ctx context.Context, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		"select "+orderColumns+" from orders where status = 'pending' and type in ('limit','stop','stop_limit') order by created_at, id limit $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListByAccount(ctx context.Context, accountID string, status types.OrderStatus, limit, offset int) ([]*model.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = s.pool.Query(ctx,
			"select "+orderColumns+" from orders where account_id = $1 order by created_at desc, id desc limit $2 offset $3",
			accountID, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx,
			"select "+orderColumns+" from orders where account_id = $1 and status = $2 order by created_at desc, id desc limit $3 offset $4",
			accountID, string(status), limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

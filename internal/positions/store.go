package positions

import (
	"context"
	"errors"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("position not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const positionColumns = `
	id, account_id, instrument_id, side, status,
	size, entry_price, current_price, leverage, margin_used,
	unrealized_pnl, unrealized_pnl_pct, realized_pnl,
	sl_price, tp_price,
	opened_at, closed_at, last_updated_at
`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	err := row.Scan(
		&p.ID, &p.AccountID, &p.InstrumentID, &p.Side, &p.Status,
		&p.Size, &p.EntryPrice, &p.CurrentPrice, &p.Leverage, &p.MarginUsed,
		&p.UnrealizedPnL, &p.UnrealizedPnLPct, &p.RealizedPnL,
		&p.SLPrice, &p.TPPrice,
		&p.OpenedAt, &p.ClosedAt, &p.LastUpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx, "select "+positionColumns+" from positions where id = $1", id)
	return scanPosition(row)
}

// GetOpenForUpdate locks the single open position on (account, instrument)
// for the remainder of tx. Returns ErrNotFound when no position is open,
// which is a normal outcome for the netting path.
func (s *Store) GetOpenForUpdate(ctx context.Context, tx pgx.Tx, accountID, instrumentID string) (*model.Position, error) {
	row := tx.QueryRow(ctx,
		"select "+positionColumns+" from positions where account_id = $1 and instrument_id = $2 and status = 'open' for update",
		accountID, instrumentID)
	return scanPosition(row)
}

func (s *Store) Insert(ctx context.Context, tx pgx.Tx, p *model.Position) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	_, err := tx.Exec(ctx, `
		insert into positions (
			id, account_id, instrument_id, side, status,
			size, entry_price, current_price, leverage, margin_used,
			unrealized_pnl, unrealized_pnl_pct, realized_pnl,
			sl_price, tp_price,
			opened_at, closed_at, last_updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		p.ID, p.AccountID, p.InstrumentID, string(p.Side), string(p.Status),
		p.Size, p.EntryPrice, p.CurrentPrice, p.Leverage, p.MarginUsed,
		p.UnrealizedPnL, p.UnrealizedPnLPct, p.RealizedPnL,
		p.SLPrice, p.TPPrice,
		p.OpenedAt, p.ClosedAt, p.LastUpdatedAt)
	return err
}

func (s *Store) Update(ctx context.Context, tx pgx.Tx, p *model.Position) error {
	_, err := tx.Exec(ctx, `
		update positions set
			status = $2, size = $3, entry_price = $4, current_price = $5, margin_used = $6,
			unrealized_pnl = $7, unrealized_pnl_pct = $8, realized_pnl = $9,
			sl_price = $10, tp_price = $11,
			closed_at = $12, last_updated_at = $13
		where id = $1`,
		p.ID,
		string(p.Status), p.Size, p.EntryPrice, p.CurrentPrice, p.MarginUsed,
		p.UnrealizedPnL, p.UnrealizedPnLPct, p.RealizedPnL,
		p.SLPrice, p.TPPrice,
		p.ClosedAt, p.LastUpdatedAt)
	return err
}

func (s *Store) listBy(ctx context.Context, query string, args ...any) ([]*model.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListOpenByAccount(ctx context.Context, accountID string) ([]*model.Position, error) {
	return s.listBy(ctx,
		"select "+positionColumns+" from positions where account_id = $1 and status = 'open' order by opened_at",
		accountID)
}

func (s *Store) ListByAccount(ctx context.Context, accountID string, status types.PositionStatus, limit, offset int) ([]*model.Position, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if status == "" {
		return s.listBy(ctx,
			"select "+positionColumns+" from positions where account_id = $1 order by opened_at desc limit $2 offset $3",
			accountID, limit, offset)
	}
	return s.listBy(ctx,
		"select "+positionColumns+" from positions where account_id = $1 and status = $2 order by opened_at desc limit $3 offset $4",
		accountID, string(status), limit, offset)
}

// ListAllOpen feeds the mark-to-market pass. Oldest first so long-lived
// exposure is refreshed before anything opened this tick.
func (s *Store) ListAllOpen(ctx context.Context) ([]*model.Position, error) {
	return s.listBy(ctx,
		"select " + positionColumns + " from positions where status = 'open' order by opened_at")
}

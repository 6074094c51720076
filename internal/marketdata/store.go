package marketdata

import (
	"context"

	"lv-simtrade/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads instrument reference data. Instruments are owned by an
// external catalog process; the engine only queries them.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const instrumentColumns = `
	id, symbol, name, type,
	min_size, max_size, tick_size, max_leverage,
	spread_pct, commission_pct,
	is_active, is_tradeable,
	created_at, updated_at
`

func scanInstrument(row interface{ Scan(...any) error }) (*model.Instrument, error) {
	var ins model.Instrument
	err := row.Scan(
		&ins.ID, &ins.Symbol, &ins.Name, &ins.Type,
		&ins.MinSize, &ins.MaxSize, &ins.TickSize, &ins.MaxLeverage,
		&ins.SpreadPct, &ins.CommissionPct,
		&ins.IsActive, &ins.IsTradeable,
		&ins.CreatedAt, &ins.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Instrument, error) {
	row := s.pool.QueryRow(ctx, "select "+instrumentColumns+" from instruments where id = $1", id)
	return scanInstrument(row)
}

func (s *Store) GetBySymbol(ctx context.Context, symbol string) (*model.Instrument, error) {
	row := s.pool.QueryRow(ctx, "select "+instrumentColumns+" from instruments where symbol = $1", symbol)
	return scanInstrument(row)
}

func (s *Store) ListActive(ctx context.Context) ([]*model.Instrument, error) {
	rows, err := s.pool.Query(ctx, "select "+instrumentColumns+" from instruments where is_active order by symbol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Instrument
	for rows.Next() {
		ins, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lv-simtrade/internal/model"
	"lv-simtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountFrozen       = errors.New("account is frozen")
)

// Service is the only writer of virtual_balance. Every balance change goes
// through an immutable ledger entry inside the caller's transaction, so the
// entry sum and the balance column can never drift apart.
type Service struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewService(pool *pgxpool.Pool, logger *zap.Logger) *Service {
	return &Service{pool: pool, logger: logger}
}

func newID() string {
	return ulid.Make().String()
}

const accountColumns = `
	id, user_id, name, base_currency,
	deposited_amount, virtual_balance, equity_cached, margin_used, margin_available,
	total_trades, winning_trades, losing_trades, total_pnl,
	is_active, is_frozen,
	created_at, updated_at, last_trade_at
`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.BaseCurrency,
		&a.DepositedAmount, &a.VirtualBalance, &a.EquityCached, &a.MarginUsed, &a.MarginAvailable,
		&a.TotalTrades, &a.WinningTrades, &a.LosingTrades, &a.TotalPnL,
		&a.IsActive, &a.IsFrozen,
		&a.CreatedAt, &a.UpdatedAt, &a.LastTradeAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, "select "+accountColumns+" from accounts where id = $1", accountID)
	return scanAccount(row)
}

// GetAccountForUpdate locks the account row for the remainder of tx. All
// balance writes must go through this lock so concurrent fills serialize.
func (s *Service) GetAccountForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (*model.Account, error) {
	row := tx.QueryRow(ctx, "select "+accountColumns+" from accounts where id = $1 for update", accountID)
	return scanAccount(row)
}

// Effects is the monetary outcome of one execution event. Fee is always
// non-negative and debited; RealizedPnL is signed. MarginDelta only moves
// the margin columns and never produces a ledger entry, so the conservation
// property over entries holds exactly.
type Effects struct {
	Fee         decimal.Decimal
	RealizedPnL decimal.Decimal
	MarginDelta decimal.Decimal
}

// Post applies trade effects to a locked account. A reference that already
// produced entries is a replay: the whole effect set, margin delta
// included, is skipped as one unit, so retrying a fill is safe. An effect
// set that writes no entries at all (zero fee, zero P&L) leaves no replay
// marker; those callers rely on the order-status compare-and-set upstream.
func (s *Service) Post(ctx context.Context, tx pgx.Tx, acc *model.Account, eff Effects, refType types.ReferenceType, refID, desc string) error {
	posted, err := s.referencePosted(ctx, tx, acc.ID, refType, refID)
	if err != nil {
		return err
	}
	if posted {
		s.logger.Warn("duplicate post skipped",
			zap.String("account_id", acc.ID),
			zap.String("reference_type", string(refType)),
			zap.String("reference_id", refID))
		return nil
	}

	if !eff.Fee.IsZero() {
		if _, err := s.appendOnce(ctx, tx, acc, types.LedgerEntryTypeFee, eff.Fee.Neg(), refType, refID, desc); err != nil {
			return err
		}
	}
	if !eff.RealizedPnL.IsZero() {
		if _, err := s.appendOnce(ctx, tx, acc, types.LedgerEntryTypeTradePnL, eff.RealizedPnL, refType, refID, desc); err != nil {
			return err
		}
	}
	if !eff.MarginDelta.IsZero() {
		acc.MarginUsed = acc.MarginUsed.Add(eff.MarginDelta)
		if acc.MarginUsed.LessThan(decimal.Zero) {
			acc.MarginUsed = decimal.Zero
		}
	}
	return s.flushAccount(ctx, tx, acc)
}

// referencePosted reports whether any entry exists for the reference. The
// caller holds the account row lock, so the check cannot race a concurrent
// post for the same account.
func (s *Service) referencePosted(ctx context.Context, tx pgx.Tx, accountID string, refType types.ReferenceType, refID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		"select exists (select 1 from ledger_entries where account_id = $1 and reference_type = $2 and reference_id = $3)",
		accountID, string(refType), refID).Scan(&exists)
	return exists, err
}

// Credit adds funds outside the trade path: deposits, bonuses, corrections.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, acc *model.Account, amount decimal.Decimal, entryType types.LedgerEntryType, refType types.ReferenceType, refID, desc string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	if _, err := s.appendOnce(ctx, tx, acc, entryType, amount, refType, refID, desc); err != nil {
		return err
	}
	return s.flushAccount(ctx, tx, acc)
}

// Debit removes funds outside the trade path. Fails rather than letting the
// balance go negative.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, acc *model.Account, amount decimal.Decimal, entryType types.LedgerEntryType, refType types.ReferenceType, refID, desc string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	if acc.VirtualBalance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	if _, err := s.appendOnce(ctx, tx, acc, entryType, amount.Neg(), refType, refID, desc); err != nil {
		return err
	}
	return s.flushAccount(ctx, tx, acc)
}

// appendOnce writes one entry unless the same (reference, entry type) was
// already recorded for the account. Returns false on a replay. The caller
// holds the account row lock, so the check-then-insert cannot race.
func (s *Service) appendOnce(ctx context.Context, tx pgx.Tx, acc *model.Account, entryType types.LedgerEntryType, amount decimal.Decimal, refType types.ReferenceType, refID, desc string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		"select exists (select 1 from ledger_entries where account_id = $1 and reference_type = $2 and reference_id = $3 and entry_type = $4)",
		acc.ID, string(refType), refID, string(entryType)).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	acc.VirtualBalance = acc.VirtualBalance.Add(amount)

	_, err = tx.Exec(ctx, `
		insert into ledger_entries (id, account_id, user_id, entry_type, amount, balance_after, description, reference_type, reference_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		newID(), acc.ID, acc.UserID, string(entryType), amount, acc.VirtualBalance, desc, string(refType), refID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) flushAccount(ctx context.Context, tx pgx.Tx, acc *model.Account) error {
	acc.MarginAvailable = acc.VirtualBalance.Sub(acc.MarginUsed)
	acc.UpdatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx, `
		update accounts set
			virtual_balance = $2, equity_cached = $3, margin_used = $4, margin_available = $5,
			total_trades = $6, winning_trades = $7, losing_trades = $8, total_pnl = $9,
			updated_at = $10, last_trade_at = $11
		where id = $1`,
		acc.ID,
		acc.VirtualBalance, acc.EquityCached, acc.MarginUsed, acc.MarginAvailable,
		acc.TotalTrades, acc.WinningTrades, acc.LosingTrades, acc.TotalPnL,
		acc.UpdatedAt, acc.LastTradeAt)
	return err
}

// History returns entries for an account, newest first.
func (s *Service) History(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		select id, account_id, user_id, entry_type, amount, balance_after, description, reference_type, reference_id, created_at
		from ledger_entries
		where account_id = $1
		order by created_at desc, id desc
		limit $2 offset $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.UserID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Drift is a reconciliation finding for one account.
type Drift struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	EntrySum  decimal.Decimal `json:"entry_sum"`
	Delta     decimal.Decimal `json:"delta"`
}

// Reconcile cross-checks virtual_balance against the entry sum for every
// account and reports the accounts where they disagree. A non-empty result
// means an invariant was broken somewhere and needs investigation.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	rows, err := s.pool.Query(ctx, `
		select a.id, a.virtual_balance, coalesce(sum(le.amount), 0)
		from accounts a
		left join ledger_entries le on le.account_id = a.id
		group by a.id, a.virtual_balance
		having a.virtual_balance <> coalesce(sum(le.amount), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.AccountID, &d.Balance, &d.EntrySum); err != nil {
			return nil, err
		}
		d.Delta = d.Balance.Sub(d.EntrySum)
		out = append(out, d)
	}
	if len(out) > 0 {
		s.logger.Error("ledger reconciliation found drift", zap.Int("accounts", len(out)))
	}
	return out, rows.Err()
}

// RecordTradeStats updates the account's aggregate counters after a close.
func RecordTradeStats(acc *model.Account, realized decimal.Decimal, at time.Time) {
	acc.TotalTrades++
	switch {
	case realized.GreaterThan(decimal.Zero):
		acc.WinningTrades++
	case realized.LessThan(decimal.Zero):
		acc.LosingTrades++
	}
	acc.TotalPnL = acc.TotalPnL.Add(realized)
	acc.LastTradeAt = &at
}

// Describe builds the human-readable entry description used on fills.
func Describe(action, symbol string, size decimal.Decimal) string {
	return fmt.Sprintf("%s %s %s", action, size.String(), symbol)
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lv-simtrade/internal/ledger"
	"lv-simtrade/internal/marketdata"
	"lv-simtrade/internal/metrics"
	"lv-simtrade/internal/model"
	"lv-simtrade/internal/positions"
	"lv-simtrade/internal/simulator"
	"lv-simtrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidSize        = errors.New("order size must be positive")
	ErrSizeOutOfBounds    = errors.New("order size outside instrument bounds")
	ErrLeverageTooHigh    = errors.New("leverage exceeds instrument maximum")
	ErrInstrumentInactive = errors.New("instrument is not tradeable")
	ErrInsufficientMargin = errors.New("insufficient free margin")
	ErrOrderTerminal      = errors.New("order already in a terminal status")
	ErrNotOrderOwner      = errors.New("order does not belong to account")
	ErrPositionClosed     = errors.New("position is not open")
	ErrNotPositionOwner   = errors.New("position does not belong to account")

	// errRaceLost marks a fill discarded because the order left pending
	// between evaluation and commit. Internal to the sweep path.
	errRaceLost = errors.New("order status changed concurrently")
)

// Service owns the synchronous order path: validation, inline execution of
// market orders, cancellation, position closes, and the periodic sweep over
// resting orders. All monetary effects of one fill commit in one
// transaction serialized on the account row.
type Service struct {
	pool      *pgxpool.Pool
	store     *Store
	posStore  *positions.Store
	ledger    *ledger.Service
	insStore  *marketdata.Store
	sim       *simulator.Simulator
	prices    marketdata.PriceProvider
	bus       *marketdata.Bus
	collector *metrics.Collector
	logger    *zap.Logger

	maintenancePct decimal.Decimal
}

func NewService(
	pool *pgxpool.Pool,
	store *Store,
	posStore *positions.Store,
	ledgerSvc *ledger.Service,
	insStore *marketdata.Store,
	sim *simulator.Simulator,
	prices marketdata.PriceProvider,
	bus *marketdata.Bus,
	collector *metrics.Collector,
	logger *zap.Logger,
	maintenancePct decimal.Decimal,
) *Service {
	if maintenancePct.IsZero() {
		maintenancePct = simulator.DefaultMaintenanceMarginPct
	}
	return &Service{
		pool:           pool,
		store:          store,
		posStore:       posStore,
		ledger:         ledgerSvc,
		insStore:       insStore,
		sim:            sim,
		prices:         prices,
		bus:            bus,
		collector:      collector,
		logger:         logger,
		maintenancePct: maintenancePct,
	}
}

// PlaceRequest is one order submission from the outer surface.
type PlaceRequest struct {
	AccountID    string
	InstrumentID string
	Side         types.OrderSide
	Type         types.OrderType
	Size         decimal.Decimal
	Price        *decimal.Decimal
	StopPrice    *decimal.Decimal
	SLPrice      *decimal.Decimal
	TPPrice      *decimal.Decimal
	Leverage     int64
	ExpiresAt    *time.Time
}

// PlaceOrder validates and persists an order. Market orders execute inline
// before returning; conditional orders rest pending for the sweep. A
// rejection is not an error: the order comes back with status rejected and
// a reason, and the balance is untouched.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*model.Order, error) {
	if req.Size.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidSize
	}
	if req.Leverage <= 0 {
		req.Leverage = 1
	}

	ins, err := s.insStore.GetByID(ctx, req.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("load instrument: %w", err)
	}
	if !ins.IsActive || !ins.IsTradeable {
		return nil, ErrInstrumentInactive
	}
	if req.Size.LessThan(ins.MinSize) || (ins.MaxSize.GreaterThan(decimal.Zero) && req.Size.GreaterThan(ins.MaxSize)) {
		return nil, ErrSizeOutOfBounds
	}
	if ins.MaxLeverage > 0 && req.Leverage > ins.MaxLeverage {
		return nil, ErrLeverageTooHigh
	}

	order := &model.Order{
		AccountID:    req.AccountID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		Type:         req.Type,
		Status:       types.OrderStatusPending,
		Size:         req.Size,
		Price:        req.Price,
		StopPrice:    req.StopPrice,
		SLPrice:      req.SLPrice,
		TPPrice:      req.TPPrice,
		Leverage:     req.Leverage,
		FilledSize:   decimal.Zero,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	acc, err := s.ledger.GetAccountForUpdate(ctx, tx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive || acc.IsFrozen {
		return nil, ledger.ErrAccountFrozen
	}

	mark, err := s.prices.CurrentPrice(ctx, ins)
	if err != nil {
		return nil, fmt.Errorf("current price for %s: %w", ins.Symbol, err)
	}

	out := s.sim.Simulate(s.simRequest(order, ins, mark))

	switch out.Status {
	case types.OrderStatusRejected:
		order.Status = types.OrderStatusRejected
		order.RejectReason = out.Reason
		if err := s.store.Insert(ctx, tx, order); err != nil {
			return nil, err
		}

	case types.OrderStatusPending:
		if !order.Type.Conditional() {
			return nil, fmt.Errorf("%s order came back pending: %s", order.Type, out.Reason)
		}
		// Resting order: reserve nothing now, but refuse intents the
		// account could not possibly margin at today's price.
		estMargin := mark.Mul(order.Size).Div(decimal.NewFromInt(order.Leverage))
		if freeMargin(acc).LessThan(estMargin) {
			return nil, ErrInsufficientMargin
		}
		if err := s.store.Insert(ctx, tx, order); err != nil {
			return nil, err
		}

	case types.OrderStatusFilled:
		if err := s.store.Insert(ctx, tx, order); err != nil {
			return nil, err
		}
		if err := s.executeFill(ctx, tx, acc, ins, order, out); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.afterCommit(order, ins)
	return order, nil
}

func (s *Service) simRequest(o *model.Order, ins *model.Instrument, mark decimal.Decimal) simulator.Request {
	req := simulator.Request{
		Type:       o.Type,
		Side:       o.Side,
		Size:       o.Size,
		MarkPrice:  mark,
		LimitPrice: o.Price,
		StopPrice:  o.StopPrice,
		Instrument: ins.Type,
		Leverage:   o.Leverage,
	}
	if !ins.SpreadPct.IsZero() {
		req.SpreadPct = &ins.SpreadPct
	}
	if !ins.CommissionPct.IsZero() {
		req.FeeRate = &ins.CommissionPct
	}
	return req
}

func freeMargin(acc *model.Account) decimal.Decimal {
	return acc.VirtualBalance.Sub(acc.MarginUsed)
}

// marginCovered gates only fills that add net margin. Realized P&L of any
// closed portion counts toward covering the new reservation and the fee.
// Fills that release margin always pass: a close must go through whatever
// the realized loss, or an account deep under water could never exit its
// exposure.
func marginCovered(free, realized, fee, delta decimal.Decimal) bool {
	if delta.LessThanOrEqual(decimal.Zero) {
		return true
	}
	return free.Add(realized).Sub(fee).GreaterThanOrEqual(delta)
}

// executeFill is the shared core of the inline and sweep paths. The caller
// holds the account row lock; everything here commits or rolls back as one.
func (s *Service) executeFill(ctx context.Context, tx pgx.Tx, acc *model.Account, ins *model.Instrument, order *model.Order, out simulator.Outcome) error {
	now := time.Now().UTC()

	pos, err := s.posStore.GetOpenForUpdate(ctx, tx, acc.ID, ins.ID)
	if err != nil && !errors.Is(err, positions.ErrNotFound) {
		return err
	}

	res := positions.ApplyFill(pos, acc.ID, ins.ID, positions.Fill{
		OrderID:  order.ID,
		Side:     order.Side,
		Size:     out.FilledSize,
		Price:    out.FillPrice,
		Leverage: order.Leverage,
		At:       now,
	})

	if !marginCovered(freeMargin(acc), res.Realized, out.Fee, res.MarginDelta) {
		return ErrInsufficientMargin
	}

	if res.Updated != nil {
		if err := s.posStore.Update(ctx, tx, res.Updated); err != nil {
			return err
		}
	}
	if res.Opened != nil {
		if err := s.posStore.Insert(ctx, tx, res.Opened); err != nil {
			return err
		}
	}

	order.Status = types.OrderStatusFilled
	order.FilledSize = out.FilledSize
	order.FillPrice = &out.FillPrice
	order.Fee = out.Fee
	order.Slippage = out.Slippage
	order.MarginRequired = out.MarginRequired
	order.FilledAt = &now
	if !res.ClosedSize.IsZero() {
		realized := res.Realized
		order.RealizedPnL = &realized
	}

	applied, err := s.store.MarkFilled(ctx, tx, order)
	if err != nil {
		return err
	}
	if !applied {
		return errRaceLost
	}

	if !res.ClosedSize.IsZero() {
		ledger.RecordTradeStats(acc, res.Realized, now)
	}

	action := "open"
	if res.FullyClosed {
		action = "close"
	} else if !res.ClosedSize.IsZero() {
		action = "partial close"
	}
	return s.ledger.Post(ctx, tx, acc, ledger.Effects{
		Fee:         out.Fee,
		RealizedPnL: res.Realized,
		MarginDelta: res.MarginDelta,
	}, types.ReferenceTypeOrder, order.ID, ledger.Describe(action, ins.Symbol, out.FilledSize))
}

func (s *Service) afterCommit(order *model.Order, ins *model.Instrument) {
	if s.collector != nil {
		s.collector.OrderOutcome(string(order.Type), string(order.Status))
	}
	s.logger.Info("order processed",
		zap.String("order_id", order.ID),
		zap.String("account_id", order.AccountID),
		zap.String("symbol", ins.Symbol),
		zap.String("type", string(order.Type)),
		zap.String("status", string(order.Status)))
	if s.bus != nil {
		s.bus.Publish(marketdata.Event{Type: "order", Data: order})
	}
}

// CancelOrder moves a pending order to cancelled. Losing the race against a
// concurrent fill surfaces as ErrOrderTerminal.
func (s *Service) CancelOrder(ctx context.Context, accountID, orderID string) (*model.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := s.store.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, ErrNotOrderOwner
	}
	if order.Status.Terminal() {
		return nil, ErrOrderTerminal
	}

	now := time.Now().UTC()
	applied, err := s.store.MarkCancelled(ctx, tx, orderID, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrOrderTerminal
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	order.Status = types.OrderStatusCancelled
	order.CancelledAt = &now
	if s.collector != nil {
		s.collector.OrderOutcome(string(order.Type), string(order.Status))
	}
	s.logger.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("account_id", accountID))
	return order, nil
}

// ClosePosition closes all or part of an open position at the current touch
// price. The close is itself an order, so it gets its own id, fee, ledger
// entries, and replay protection like any other fill.
func (s *Service) ClosePosition(ctx context.Context, accountID, positionID string, size *decimal.Decimal) (*model.Order, error) {
	pos, err := s.posStore.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.AccountID != accountID {
		return nil, ErrNotPositionOwner
	}
	if pos.Status != types.PositionStatusOpen {
		return nil, ErrPositionClosed
	}

	closeSize := pos.Size
	if size != nil {
		if size.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidSize
		}
		if size.LessThan(closeSize) {
			closeSize = *size
		}
	}

	ins, err := s.insStore.GetByID(ctx, pos.InstrumentID)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		AccountID:    accountID,
		InstrumentID: pos.InstrumentID,
		Side:         pos.Side.Opposite(),
		Type:         types.OrderTypeMarket,
		Status:       types.OrderStatusPending,
		Size:         closeSize,
		Leverage:     pos.Leverage,
		FilledSize:   decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// No active/frozen gate here, unlike PlaceOrder: closing only reduces
	// exposure, and a frozen account must still be able to exit its
	// positions.
	acc, err := s.ledger.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	mark, err := s.prices.CurrentPrice(ctx, ins)
	if err != nil {
		return nil, fmt.Errorf("current price for %s: %w", ins.Symbol, err)
	}

	out := s.sim.Simulate(s.simRequest(order, ins, mark))
	if out.Status != types.OrderStatusFilled {
		return nil, fmt.Errorf("close did not fill: %s", out.Reason)
	}
	if err := s.store.Insert(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := s.executeFill(ctx, tx, acc, ins, order, out); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.afterCommit(order, ins)
	return order, nil
}

// CloseAllPositions closes every open position on the account, one
// transaction each, and keeps going past individual failures.
func (s *Service) CloseAllPositions(ctx context.Context, accountID string) ([]*model.Order, error) {
	open, err := s.posStore.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var closed []*model.Order
	var firstErr error
	for _, pos := range open {
		order, err := s.ClosePosition(ctx, accountID, pos.ID, nil)
		if err != nil {
			s.logger.Error("close all: position failed",
				zap.String("position_id", pos.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		closed = append(closed, order)
	}
	return closed, firstErr
}

// SweepPendingOrders re-evaluates every resting conditional order against a
// price snapshot taken at pass start. One transaction per order; an order
// whose fill loses the race against a concurrent cancel is discarded
// without effect. Returns the number of orders filled.
func (s *Service) SweepPendingOrders(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingConditional(ctx, 500)
	if err != nil {
		return 0, err
	}
	// One price per instrument for the whole pass, so every order in the
	// pass sees the same market.
	snapshot := make(map[string]decimal.Decimal)
	instruments := make(map[string]*model.Instrument)
	for _, o := range pending {
		if _, ok := snapshot[o.InstrumentID]; ok {
			continue
		}
		ins, err := s.insStore.GetByID(ctx, o.InstrumentID)
		if err != nil {
			s.logger.Warn("sweep: instrument load failed",
				zap.String("instrument_id", o.InstrumentID), zap.Error(err))
			continue
		}
		px, err := s.prices.CurrentPrice(ctx, ins)
		if err != nil {
			s.logger.Warn("sweep: no price",
				zap.String("symbol", ins.Symbol), zap.Error(err))
			continue
		}
		instruments[o.InstrumentID] = ins
		snapshot[o.InstrumentID] = px
	}

	filled := 0
	for _, o := range pending {
		mark, ok := snapshot[o.InstrumentID]
		if !ok {
			continue
		}
		didFill, err := s.sweepOne(ctx, o, instruments[o.InstrumentID], mark)
		if err != nil {
			s.logger.Error("sweep: order failed",
				zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if didFill {
			filled++
		}
	}

	if s.collector != nil {
		if open, err := s.posStore.ListAllOpen(ctx); err == nil {
			s.collector.SetOpenPositions(len(open))
		}
	}
	return filled, nil
}

func (s *Service) sweepOne(ctx context.Context, stale *model.Order, ins *model.Instrument, mark decimal.Decimal) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	acc, err := s.ledger.GetAccountForUpdate(ctx, tx, stale.AccountID)
	if err != nil {
		return false, err
	}

	// Re-read under the account lock; the listing snapshot may be stale.
	order, err := s.store.GetForUpdate(ctx, tx, stale.ID)
	if err != nil {
		return false, err
	}
	if order.Status != types.OrderStatusPending {
		return false, nil
	}

	out := s.sim.Simulate(s.simRequest(order, ins, mark))
	switch out.Status {
	case types.OrderStatusPending:
		return false, nil

	case types.OrderStatusRejected:
		if err := s.rejectInTx(ctx, tx, order, out.Reason); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		s.afterCommit(order, ins)
		return false, nil
	}

	err = s.executeFill(ctx, tx, acc, ins, order, out)
	if errors.Is(err, ErrInsufficientMargin) {
		// Triggered but unaffordable: terminal rejection, not an eternal
		// retry. The rollback above discarded any partial effect, so
		// reject in a fresh transaction.
		tx.Rollback(ctx)
		return false, s.rejectOrder(ctx, order, ins, err.Error())
	}
	if errors.Is(err, errRaceLost) {
		if s.collector != nil {
			s.collector.RaceDiscarded()
		}
		s.logger.Info("sweep: fill discarded, order no longer pending",
			zap.String("order_id", order.ID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	s.afterCommit(order, ins)
	return true, nil
}

func (s *Service) rejectInTx(ctx context.Context, tx pgx.Tx, order *model.Order, reason string) error {
	tag, err := tx.Exec(ctx,
		"update orders set status = 'rejected', reject_reason = $2 where id = $1 and status = 'pending'",
		order.ID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		order.Status = types.OrderStatusRejected
		order.RejectReason = reason
	}
	return nil
}

func (s *Service) rejectOrder(ctx context.Context, order *model.Order, ins *model.Instrument, reason string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.rejectInTx(ctx, tx, order, reason); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.afterCommit(order, ins)
	return nil
}

// Metrics is the live account snapshot: equity and margin level are marked
// against current prices, never the cached columns.
type Metrics struct {
	Balance          decimal.Decimal `json:"balance"`
	Equity           decimal.Decimal `json:"equity"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	MarginUsed       decimal.Decimal `json:"margin_used"`
	FreeMargin       decimal.Decimal `json:"free_margin"`
	MarginLevel      decimal.Decimal `json:"margin_level"`
	OpenPositions    int             `json:"open_positions"`
	MarginCall       bool            `json:"margin_call"`
	MarginCallReason string          `json:"margin_call_reason,omitempty"`
}

func (s *Service) AccountMetrics(ctx context.Context, accountID string) (*Metrics, error) {
	acc, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	open, err := s.posStore.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	unrealized := decimal.Zero
	for _, pos := range open {
		ins, err := s.insStore.GetByID(ctx, pos.InstrumentID)
		if err != nil {
			return nil, err
		}
		mark, err := s.prices.CurrentPrice(ctx, ins)
		if err != nil {
			s.logger.Warn("metrics: no price, using last",
				zap.String("symbol", ins.Symbol))
			mark = pos.CurrentPrice
		}
		unrealized = unrealized.Add(simulator.PnL(pos.Side, pos.EntryPrice, mark, pos.Size))
	}

	equity := acc.VirtualBalance.Add(unrealized)
	level := decimal.NewFromInt(999)
	if acc.MarginUsed.GreaterThan(decimal.Zero) {
		level = equity.Div(acc.MarginUsed).Mul(decimal.NewFromInt(100))
	}
	called, reason := simulator.CheckMarginCall(acc.VirtualBalance, acc.MarginUsed, unrealized, s.maintenancePct)

	return &Metrics{
		Balance:          acc.VirtualBalance,
		Equity:           equity,
		UnrealizedPnL:    unrealized,
		MarginUsed:       acc.MarginUsed,
		FreeMargin:       acc.VirtualBalance.Sub(acc.MarginUsed),
		MarginLevel:      level,
		OpenPositions:    len(open),
		MarginCall:       called,
		MarginCallReason: reason,
	}, nil
}

// ListOrders and ListPositions are thin store pass-throughs for the API.
func (s *Service) ListOrders(ctx context.Context, accountID string, status types.OrderStatus, limit, offset int) ([]*model.Order, error) {
	return s.store.ListByAccount(ctx, accountID, status, limit, offset)
}

// ListPositions marks open positions to the current price before returning
// them, so the API always shows live unrealized P&L.
func (s *Service) ListPositions(ctx context.Context, accountID string, status types.PositionStatus, limit, offset int) ([]*model.Position, error) {
	list, err := s.posStore.ListByAccount(ctx, accountID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, pos := range list {
		if pos.Status != types.PositionStatusOpen {
			continue
		}
		ins, err := s.insStore.GetByID(ctx, pos.InstrumentID)
		if err != nil {
			continue
		}
		mark, err := s.prices.CurrentPrice(ctx, ins)
		if err != nil {
			continue
		}
		positions.MarkToMarket(pos, mark, now)
	}
	return list, nil
}

func (s *Service) GetOrder(ctx context.Context, accountID, orderID string) (*model.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, ErrNotOrderOwner
	}
	return order, nil
}

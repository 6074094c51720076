package orders

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lv-simtrade/internal/httputil"
	"lv-simtrade/internal/ledger"
	"lv-simtrade/internal/positions"
	"lv-simtrade/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type placeOrderRequest struct {
	InstrumentID string `json:"instrument_id"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Size         string `json:"size"`
	Price        string `json:"price,omitempty"`
	StopPrice    string `json:"stop_price,omitempty"`
	SLPrice      string `json:"sl_price,omitempty"`
	TPPrice      string `json:"tp_price,omitempty"`
	Leverage     int64  `json:"leverage,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

func parseOptionalDecimal(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.New("invalid " + field)
	}
	return &d, nil
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request, accountID string) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	side := types.OrderSide(req.Side)
	if side != types.OrderSideBuy && side != types.OrderSideSell {
		httputil.WriteError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	size, err := decimal.NewFromString(req.Size)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid size")
		return
	}
	price, err := parseOptionalDecimal(req.Price, "price")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stopPrice, err := parseOptionalDecimal(req.StopPrice, "stop_price")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	slPrice, err := parseOptionalDecimal(req.SLPrice, "sl_price")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpPrice, err := parseOptionalDecimal(req.TPPrice, "tp_price")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		ts, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid expires_at, want RFC3339")
			return
		}
		expiresAt = &ts
	}

	order, err := h.svc.PlaceOrder(r.Context(), PlaceRequest{
		AccountID:    accountID,
		InstrumentID: req.InstrumentID,
		Side:         side,
		Type:         types.OrderType(req.Type),
		Size:         size,
		Price:        price,
		StopPrice:    stopPrice,
		SLPrice:      slPrice,
		TPPrice:      tpPrice,
		Leverage:     req.Leverage,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		httputil.WriteError(w, placeStatus(err), err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func placeStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidSize),
		errors.Is(err, ErrSizeOutOfBounds),
		errors.Is(err, ErrLeverageTooHigh),
		errors.Is(err, ErrInstrumentInactive):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientMargin):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrAccountFrozen):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, accountID string) {
	order, err := h.svc.GetOrder(r.Context(), accountID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOrderOwner) {
		httputil.WriteError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, accountID string) {
	limit, offset := pagination(r)
	list, err := h.svc.ListOrders(r.Context(), accountID, types.OrderStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, accountID string) {
	order, err := h.svc.CancelOrder(r.Context(), accountID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotOrderOwner):
		httputil.WriteError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, ErrOrderTerminal):
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request, accountID string) {
	limit, offset := pagination(r)
	list, err := h.svc.ListPositions(r.Context(), accountID, types.PositionStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": list})
}

type closePositionRequest struct {
	Size string `json:"size,omitempty"`
}

func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request, accountID string) {
	var req closePositionRequest
	if r.ContentLength > 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	size, err := parseOptionalDecimal(req.Size, "size")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.svc.ClosePosition(r.Context(), accountID, chi.URLParam(r, "id"), size)
	switch {
	case errors.Is(err, positions.ErrNotFound), errors.Is(err, ErrNotPositionOwner):
		httputil.WriteError(w, http.StatusNotFound, "position not found")
		return
	case errors.Is(err, ErrPositionClosed):
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) CloseAllPositions(w http.ResponseWriter, r *http.Request, accountID string) {
	closed, err := h.svc.CloseAllPositions(r.Context(), accountID)
	if err != nil && len(closed) == 0 {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{"closed": closed}
	if err != nil {
		resp["partial_error"] = err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) AccountMetrics(w http.ResponseWriter, r *http.Request, accountID string) {
	m, err := h.svc.AccountMetrics(r.Context(), accountID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package ledger

import (
	"net/http"
	"strconv"

	"lv-simtrade/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, accountID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	entries, err := h.svc.History(r.Context(), accountID, limit, offset)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Reconciliation is an operational endpoint, not account-scoped.
func (h *Handler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	drift, err := h.svc.Reconcile(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"consistent": len(drift) == 0,
		"drift":      drift,
	})
}

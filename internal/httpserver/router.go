package httpserver

import (
	"errors"
	"net/http"

	"lv-simtrade/internal/health"
	"lv-simtrade/internal/httputil"
	"lv-simtrade/internal/ledger"
	"lv-simtrade/internal/orders"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AccountResolver maps a request to the caller's account. Authentication
// and KYC live in an external collaborator; this engine only needs the
// resolved account id it is asked to trade for.
type AccountResolver interface {
	ResolveAccount(r *http.Request) (string, error)
}

// HeaderResolver trusts the account id header set by the fronting gateway.
type HeaderResolver struct {
	Header string
}

func (h HeaderResolver) ResolveAccount(r *http.Request) (string, error) {
	name := h.Header
	if name == "" {
		name = "X-Account-ID"
	}
	if id := r.Header.Get(name); id != "" {
		return id, nil
	}
	return "", ErrNoAccount
}

var ErrNoAccount = errors.New("account not resolved")

type accountHandler func(w http.ResponseWriter, r *http.Request, accountID string)

type RouterDeps struct {
	Resolver      AccountResolver
	OrderHandler  *orders.Handler
	LedgerHandler *ledger.Handler
	HealthHandler *health.Handler
	QuotesWS      http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	withAccount := func(h accountHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			accountID, err := d.Resolver.ResolveAccount(r)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			h(w, r, accountID)
		}
	}

	r.Get("/health", d.HealthHandler.Health)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/quotes/ws", d.QuotesWS.ServeHTTP)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", withAccount(d.OrderHandler.Place))
			r.Get("/", withAccount(d.OrderHandler.List))
			r.Get("/{id}", withAccount(d.OrderHandler.Get))
			r.Delete("/{id}", withAccount(d.OrderHandler.Cancel))
		})

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", withAccount(d.OrderHandler.ListPositions))
			r.Post("/{id}/close", withAccount(d.OrderHandler.ClosePosition))
			r.Post("/close-all", withAccount(d.OrderHandler.CloseAllPositions))
		})

		r.Get("/account/metrics", withAccount(d.OrderHandler.AccountMetrics))
		r.Get("/ledger", withAccount(d.LedgerHandler.History))
		r.Get("/ledger/reconciliation", d.LedgerHandler.Reconciliation)
	})

	return r
}

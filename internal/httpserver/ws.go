package httpserver

import (
	"net/http"
	"strings"

	"lv-simtrade/internal/marketdata"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// QuotesWS streams bus events (quotes, order fills) to one client per
// connection. Backpressure is handled upstream: the bus drops events for a
// subscriber that stops draining its channel.
type QuotesWS struct {
	bus      *marketdata.Bus
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewQuotesWS(bus *marketdata.Bus, origin string, logger *zap.Logger) *QuotesWS {
	return &QuotesWS{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "" || origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}

func (h *QuotesWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Optional symbol filter: ?symbol=BTC/USD streams one instrument.
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if symbol != "" && evt.Type == "quote" {
				if q, isQuote := evt.Data.(marketdata.QuoteEvent); isQuote && q.Symbol != symbol {
					continue
				}
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

package orders

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lv-simtrade/internal/ledger"

	"github.com/stretchr/testify/assert"
)

func postJSON(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Place(rec, req, "acc1")
	return rec
}

func TestPlaceRejectsMalformedBody(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceRejectsBadSide(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h, `{"instrument_id":"i1","side":"long","type":"market","size":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "side must be buy or sell")
}

func TestPlaceRejectsBadSize(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h, `{"instrument_id":"i1","side":"buy","type":"market","size":"one"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid size")
}

func TestPlaceRejectsBadOptionalPrices(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h, `{"instrument_id":"i1","side":"buy","type":"limit","size":"1","price":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid price")
}

func TestPlaceRejectsBadExpiry(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h, `{"instrument_id":"i1","side":"buy","type":"market","size":"1","expires_at":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expires_at")
}

func TestPlaceStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidSize, http.StatusBadRequest},
		{ErrSizeOutOfBounds, http.StatusBadRequest},
		{ErrLeverageTooHigh, http.StatusBadRequest},
		{ErrInstrumentInactive, http.StatusBadRequest},
		{ErrInsufficientMargin, http.StatusUnprocessableEntity},
		{ledger.ErrAccountFrozen, http.StatusForbidden},
		{ledger.ErrAccountNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, placeStatus(tc.err), tc.err.Error())
	}
}

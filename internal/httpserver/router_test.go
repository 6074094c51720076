package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderResolver(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Account-ID", "acc1")

	id, err := HeaderResolver{}.ResolveAccount(r)
	require.NoError(t, err)
	assert.Equal(t, "acc1", id)
}

func TestHeaderResolverCustomHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Trading-Account", "acc2")

	id, err := HeaderResolver{Header: "X-Trading-Account"}.ResolveAccount(r)
	require.NoError(t, err)
	assert.Equal(t, "acc2", id)
}

func TestHeaderResolverMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := HeaderResolver{}.ResolveAccount(r)
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestRouterRejectsUnresolvedAccount(t *testing.T) {
	router := NewRouter(RouterDeps{
		Resolver: HeaderResolver{},
		QuotesWS: http.NotFoundHandler(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jarlhq/jarl/internal/errors"
	"github.com/jarlhq/jarl/internal/server/handlers"
	"github.com/jarlhq/jarl/internal/window"
)

func newTestServer(t *testing.T) (*Server, *window.Keeper) {
	t.Helper()
	keeper, err := window.NewKeeper(2, 10*time.Second)
	require.NoError(t, err)

	srv := New(Options{
		Addr:    "127.0.0.1:0",
		Service: "shopify",
		Window:  keeper,
	})
	return srv, keeper
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerStatusRoute(t *testing.T) {
	srv, keeper := newTestServer(t)
	keeper.Decide()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "shopify", body.Service)
	assert.Equal(t, 1, body.WindowLen)
	assert.Equal(t, uint64(1), keeper.Snapshot().Decisions)
}

func TestServerHealthUsesRegisteredCheckers(t *testing.T) {
	health := handlers.NewHealthManager("test")
	health.RegisterChecker("acceptor", handlers.CheckerFunc(func(ctx context.Context) error {
		return errors.New("stopped")
	}))
	srv := New(Options{Addr: "127.0.0.1:0", Health: health})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// no window wired, no status route
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerListenServeShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Nil(t, srv.Addr())
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get(fmt.Sprintf("http://%s/version", srv.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestServerListenReportsBindFailure(t *testing.T) {
	first, _ := newTestServer(t)
	require.NoError(t, first.Listen())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	second := New(Options{Addr: first.Addr().String()})
	require.Error(t, second.Listen())
}

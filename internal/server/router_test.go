package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ziggly-wallet/internal/handler"
)

func testHandlers() Handlers {
	return Handlers{
		Session:  handler.NewSessionHandler(nil),
		Balance:  handler.NewBalanceHandler(nil, nil, ""),
		Trade:    handler.NewTradeHandler(nil, nil, nil, "SUPRA", "PREZIGGLY"),
		Market:   handler.NewMarketHandler(nil, nil),
		Block:    handler.NewBlockHandler(nil),
		Provider: http.NotFoundHandler(),
	}
}

func TestRouterRegistersRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewHTTPRouter(testHandlers())

	got := map[string]bool{}
	for _, rt := range r.Routes() {
		got[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"GET /api/v1/session",
		"POST /api/v1/session/connect",
		"POST /api/v1/session/disconnect",
		"POST /api/v1/session/switch-network",
		"GET /api/v1/balances",
		"GET /api/v1/balances/:address",
		"POST /api/v1/trade",
		"POST /api/v1/transfer",
		"GET /api/v1/price-index",
		"GET /api/v1/pump-config",
		"GET /api/v1/activity",
		"GET /api/v1/latest-block",
		"GET /api/v1/provider/ws",
	} {
		assert.True(t, got[want], want)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)
}

func TestAppShutdownOrder(t *testing.T) {
	app := New(Config{HttpPort: "0"}, http.NotFoundHandler())

	var order []string
	stopped := make(chan struct{})
	app.Go(func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	app.OnShutdown(func() { order = append(order, "first") })
	app.OnShutdown(func() { order = append(order, "second") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	require.Eventually(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"second", "first"}, order)
}

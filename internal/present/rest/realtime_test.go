package rest

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/clipcast/clipcast/internal/service"
	"github.com/clipcast/clipcast/internal/usecase"
)

// The relay must survive clients that vanish mid-subscription: the handler
// goroutines wind down through context cancellation, never through channel
// closes a parked sender could trip over.
func TestHandleRealtimeClientDisconnect(t *testing.T) {
	store := fixtureStore()
	view := usecase.NewViewUsecase(store, 0, "test-secret")
	toggle := usecase.NewToggleUsecase(store, newMockEdgeStore(), nil, nil)
	signal := service.NewSignalService(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))

	h := NewHandler(view, toggle, nil, signal)
	e := echo.New()
	h.RegisterRoutes(e)

	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime"

	for i := 0; i < 3; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}

		if err := ws.WriteJSON(realtimeRequest{Type: "h"}); err != nil {
			t.Fatalf("heartbeat failed: %v", err)
		}

		// drop the connection without a close handshake, like a crashed
		// client
		if err := ws.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	// a lifecycle panic would escape the handler goroutines and kill the
	// test process; reaching a live server here is the assertion
	time.Sleep(50 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("server unavailable after disconnects: %v", err)
	}
	ws.Close()
}

package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	hub.Hello = func() any { return map[string]string{"type": "hello"} }
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	assert.Equal(t, "hello", readJSON(t, a)["type"])
	assert.Equal(t, "hello", readJSON(t, b)["type"])

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastJSON(map[string]any{"type": "reading", "index": 3})
	for _, c := range []*websocket.Conn{a, b} {
		got := readJSON(t, c)
		assert.Equal(t, "reading", got["type"])
		assert.Equal(t, 3.0, got["index"])
	}

	a.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcastDropsWhenBackedUp(t *testing.T) {
	hub := NewHub() // Run never started, so the queue fills.
	for range cap(hub.broadcast) + 5 {
		hub.BroadcastJSON(map[string]int{"n": 1})
	}
	assert.Equal(t, int64(5), hub.Dropped())

	hub.BroadcastJSON(func() {}) // not marshalable, ignored
	assert.Equal(t, int64(5), hub.Dropped())
}

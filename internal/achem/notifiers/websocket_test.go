package notifiers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, wsn *WebSocketNotifier, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return wsn.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) achem.NotificationEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev achem.NotificationEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketNotifier_Basics(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	defer wsn.Close()
	assert.Equal(t, "ws", wsn.ID())
	assert.Equal(t, "websocket", wsn.Type())
	assert.Zero(t, wsn.Clients())
	assert.NoError(t, wsn.Notify(context.Background(), testEvent("decay")), "no clients")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wsn.Notify(ctx, testEvent("decay")), context.Canceled)
}

func TestWebSocketNotifier_Broadcast(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	srv := httptest.NewServer(wsn)
	defer srv.Close()
	defer wsn.Close()

	a := dial(t, srv, "")
	b := dial(t, srv, "")
	waitClients(t, wsn, 2)

	require.NoError(t, wsn.Notify(context.Background(), testEvent("decay")))
	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, "decay", ev.ReactionName)
		assert.Equal(t, int64(3), ev.EnvTime)
	}
}

func TestWebSocketNotifier_QueryFilter(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	srv := httptest.NewServer(wsn)
	defer srv.Close()
	defer wsn.Close()

	conn := dial(t, srv, "?reaction=bind")
	waitClients(t, wsn, 1)

	require.NoError(t, wsn.Notify(context.Background(), testEvent("decay")))
	require.NoError(t, wsn.Notify(context.Background(), testEvent("bind")))
	assert.Equal(t, "bind", readEvent(t, conn).ReactionName)
}

func TestWebSocketNotifier_Subscribe(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	srv := httptest.NewServer(wsn)
	defer srv.Close()
	defer wsn.Close()

	conn := dial(t, srv, "")
	waitClients(t, wsn, 1)

	sub, err := json.Marshal(SubscribeMsg{Type: "SUBSCRIBE", Environments: []string{"other-env"}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, sub))

	// The filter applies once the reader has seen the message; poll until an
	// event for test-env is no longer delivered.
	require.Eventually(t, func() bool {
		wsn.mu.RLock()
		defer wsn.mu.RUnlock()
		for c := range wsn.clients {
			if c.wants(testEvent("decay")) {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	ev := testEvent("decay")
	ev.EnvironmentID = "other-env"
	require.NoError(t, wsn.Notify(context.Background(), testEvent("decay")))
	require.NoError(t, wsn.Notify(context.Background(), ev))
	assert.Equal(t, achem.EnvironmentID("other-env"), readEvent(t, conn).EnvironmentID)
}

func TestWebSocketNotifier_ClientDisconnect(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	srv := httptest.NewServer(wsn)
	defer srv.Close()
	defer wsn.Close()

	conn := dial(t, srv, "")
	waitClients(t, wsn, 1)
	conn.Close()
	waitClients(t, wsn, 0)
	assert.NoError(t, wsn.Notify(context.Background(), testEvent("decay")))
}

func TestWebSocketNotifier_Close(t *testing.T) {
	wsn := NewWebSocketNotifier("ws")
	srv := httptest.NewServer(wsn)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, wsn, 1)

	require.NoError(t, wsn.Close())
	assert.Zero(t, wsn.Clients())
	assert.NoError(t, wsn.Close(), "second close is a no-op")
	assert.Error(t, wsn.Notify(context.Background(), testEvent("decay")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/events"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func newTestServer(t *testing.T) (*httptest.Server, *events.Bus, *ObserverManager) {
	t.Helper()
	bus := events.NewBus()
	om := NewObserverManager()
	h := NewWebSocketHandler(bus, om, "*", true, 16)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, bus, om
}

func TestWebSocket_BroadcastsEvents(t *testing.T) {
	srv, bus, om := newTestServer(t)
	a := dial(t, srv, "")
	b := dial(t, srv, "")

	require.Eventually(t, func() bool { return bus.Subscribers() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, om.Count())

	bus.Publish(domain.Event{SessionID: "s1", Type: domain.EventMessageSent, Credential: 1, Message: 2, TotalSent: 3})

	for _, conn := range []*websocket.Conn{a, b} {
		got := readEvent(t, conn)
		assert.Equal(t, "s1", got["sessionId"])
		assert.Equal(t, "message_sent", got["type"])
		assert.Equal(t, float64(3), got["totalSent"])
		assert.Equal(t, float64(2), got["message"])
	}
}

func TestWebSocket_SessionFilter(t *testing.T) {
	srv, bus, _ := newTestServer(t)
	conn := dial(t, srv, "?session=s2")

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 5*time.Second, 5*time.Millisecond)

	bus.Publish(domain.Event{SessionID: "s1", Type: domain.EventMessageSent})
	bus.Publish(domain.Event{SessionID: "s2", Type: domain.EventCompleted, SuccessRate: "100.00%"})

	got := readEvent(t, conn)
	assert.Equal(t, "s2", got["sessionId"])
	assert.Equal(t, "100.00%", got["successRate"])
}

func TestWebSocket_PingPong(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))

	got := readEvent(t, conn)
	assert.Equal(t, "pong", got["type"])
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	srv, bus, om := newTestServer(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	require.Eventually(t, func() bool { return bus.Subscribers() == 0 && om.Count() == 0 }, 5*time.Second, 5*time.Millisecond)
}

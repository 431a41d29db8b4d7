package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/events"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const writeTimeout = 10 * time.Second

// Subscriber is the subscription side of the event bus.
type Subscriber interface {
	Subscribe(filter events.Filter, buffer int) (<-chan domain.Event, func())
}

// WebSocketHandler upgrades observers and streams every event to them.
type WebSocketHandler struct {
	bus           Subscriber
	om            *ObserverManager
	allowedOrigin string
	isDev         bool
	buffer        int
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(bus Subscriber, om *ObserverManager, allowedOrigin string, isDev bool, buffer int) *WebSocketHandler {
	return &WebSocketHandler{
		bus:           bus,
		om:            om,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		buffer:        buffer,
	}
}

// wsMessage is a control message sent by an observer.
type wsMessage struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade. The optional
// "session" query parameter narrows the stream to one session.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	observerID := uuid.NewString()
	filter := events.Filter{SessionID: r.URL.Query().Get("session")}
	slog.Info("WebSocket connection request", "observer_id", observerID, "session_filter", filter.SessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "observer_id", observerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "observer_id", observerID)
		}
	}()

	h.om.Register(observerID, ws)
	defer h.om.Unregister(observerID, ws)

	ch, unsubscribe := h.bus.Subscribe(filter, h.buffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	write := func(v any) error {
		return writeJSON(ctx, ws, v)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		h.readLoop(ctx, ws, observerID, write)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ch, observerID, write)
	}()

	wg.Wait()
	slog.Info("Observer stream ended", "observer_id", observerID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, observerID string, write func(any) error) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "observer_id", observerID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "observer_id", observerID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Ignoring non-JSON observer message", "observer_id", observerID)
			continue
		}
		if msg.Type == "ping" {
			if err := write(map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ch <-chan domain.Event, observerID string, write func(any) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := write(e); err != nil {
				slog.Debug("WebSocket write error", "error", err, "observer_id", observerID)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

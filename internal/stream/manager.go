// Package stream pushes campaign progress events to WebSocket observers.
package stream

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ObserverManager tracks connected observers so they can be closed together.
type ObserverManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewObserverManager creates an empty manager.
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		active: make(map[string]*websocket.Conn),
	}
}

// Count returns the number of connected observers.
func (m *ObserverManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds an observer connection.
func (m *ObserverManager) Register(observerID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[observerID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "observer replaced")
	}
	m.active[observerID] = conn
	slog.Info("Observer registered", "observer_id", observerID)
}

// Unregister removes an observer if conn is still the registered one.
func (m *ObserverManager) Unregister(observerID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[observerID]; exists && current == conn {
		delete(m.active, observerID)
		slog.Info("Observer unregistered", "observer_id", observerID)
	}
}

// CloseAll disconnects every observer, used on shutdown.
func (m *ObserverManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, conn := range m.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Info("Observer closed", "observer_id", id)
	}
	m.active = make(map[string]*websocket.Conn)
}

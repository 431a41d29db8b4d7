package stream

import (
	"strconv"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

func TestObserverManager_Register(t *testing.T) {
	om := NewObserverManager()
	conn := &websocket.Conn{}

	om.Register("obs-1", conn)
	om.Register("obs-1", conn)

	if om.Count() != 1 {
		t.Errorf("Expected 1 observer, got %d", om.Count())
	}
}

func TestObserverManager_UnregisterStale(t *testing.T) {
	om := NewObserverManager()
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	om.Register("obs-1", conn1)
	om.Register("obs-2", conn2)
	om.Unregister("obs-1", conn1)
	om.Unregister("obs-2", conn1)

	if om.Count() != 1 {
		t.Errorf("Expected obs-2 to survive a stale unregister, got %d observers", om.Count())
	}
	om.Unregister("obs-2", conn2)
	if om.Count() != 0 {
		t.Errorf("Expected no observers, got %d", om.Count())
	}
}

func TestObserverManager_ConcurrentAccess(t *testing.T) {
	om := NewObserverManager()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			om.Register("obs-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = om.Count()
		}
	}()

	wg.Wait()
	if om.Count() != 1000 {
		t.Errorf("Expected 1000 observers, got %d", om.Count())
	}
}

package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/events"
	"github.com/ashureev/campaignd/internal/gateway"
	"github.com/stretchr/testify/require"
)

type fakeHandle string

func (h fakeHandle) Identity() string { return string(h) }

// fakeGateway records calls. Credentials and messages are matched by text.
type fakeGateway struct {
	mu         sync.Mutex
	failAuth   map[string]bool
	failSend   map[string]bool
	blockFrom  int // sends with this 1-based number or later block until ctx ends
	releaseErr error
	stuck      chan struct{} // when set, the first send waits on it and ignores ctx

	sends        []string
	logins       []string
	releases     int
	blocked      chan struct{}
	inFlight     int
	maxInFlight  int
	releasedBusy bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failAuth: map[string]bool{},
		failSend: map[string]bool{},
		blocked:  make(chan struct{}, 16),
	}
}

func (g *fakeGateway) Authenticate(_ context.Context, cred domain.Credential) (gateway.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	text := cred.Text()
	g.logins = append(g.logins, text)
	if g.failAuth[text] {
		return nil, errors.New("login rejected")
	}
	return fakeHandle(text), nil
}

func (g *fakeGateway) Send(ctx context.Context, h gateway.Handle, _ string, text string) error {
	g.mu.Lock()
	g.sends = append(g.sends, h.Identity()+"|"+text)
	n := len(g.sends)
	block := g.blockFrom > 0 && n >= g.blockFrom
	fail := g.failSend[text]
	stuck := g.stuck != nil && n == 1
	g.inFlight++
	g.maxInFlight = max(g.maxInFlight, g.inFlight)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if stuck {
		<-g.stuck
		return nil
	}
	if block {
		g.blocked <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("send rejected")
	}
	return nil
}

func (g *fakeGateway) Release(_ context.Context, _ gateway.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases++
	if g.inFlight > 0 {
		g.releasedBusy = true
	}
	return g.releaseErr
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

func (g *fakeGateway) releaseCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releases
}

func creds(texts ...string) []domain.Credential {
	out := make([]domain.Credential, 0, len(texts))
	for _, t := range texts {
		out = append(out, domain.ParseCredential(t))
	}
	return out
}

type harness struct {
	engine *Engine
	gw     *fakeGateway
	bus    *events.Bus
	events <-chan domain.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gw := newFakeGateway()
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.Filter{}, 4096)
	e := NewEngine(gw, bus, Options{DefaultDelay: time.Millisecond})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
		unsub()
	})
	return &harness{engine: e, gw: gw, bus: bus, events: ch}
}

func (h *harness) waitStatus(t *testing.T, id string, want domain.Status) domain.Snapshot {
	t.Helper()
	var snap domain.Snapshot
	require.Eventually(t, func() bool {
		got, err := h.engine.Status(id)
		if err != nil {
			return false
		}
		snap = got
		return got.Status == want
	}, 5*time.Second, 2*time.Millisecond, "session %s never reached %s", id, want)
	return snap
}

// drain collects buffered events for one session.
func (h *harness) drain(id string) []domain.Event {
	var out []domain.Event
	for {
		select {
		case e := <-h.events:
			if e.SessionID == id {
				out = append(out, e)
			}
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func eventTypes(evs []domain.Event) []domain.EventType {
	out := make([]domain.EventType, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
)

type registryEntry struct {
	session *domain.Session
	cancel  context.CancelFunc
}

// Registry maps session ids to sessions. It is safe for concurrent use; all
// reads return copies so callers never observe a half-applied update.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*registryEntry
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*registryEntry)}
}

// Create registers s. cancel is invoked when the session leaves Running.
func (r *Registry) Create(s *domain.Session, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
	}
	r.sessions[s.ID] = &registryEntry{session: s, cancel: cancel}
	r.order = append(r.order, s.ID)
	return nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return domain.Snapshot{}, ErrNotFound
	}
	return e.session.Snapshot(), nil
}

// List returns snapshots of all sessions in creation order.
func (r *Registry) List() []domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].session.Snapshot())
	}
	return out
}

// SetStatus moves a Running session to a terminal status. Sessions already
// in a terminal status are left untouched, which makes repeated stops
// harmless. The returned snapshot reflects the state after the call.
func (r *Registry) SetStatus(id string, to domain.Status) (domain.Snapshot, error) {
	snap, _, err := r.transition(id, to)
	return snap, err
}

// transition reports whether the status actually changed.
func (r *Registry) transition(id string, to domain.Status) (domain.Snapshot, bool, error) {
	if !to.IsTerminal() {
		return domain.Snapshot{}, false, fmt.Errorf("cannot move session to %q", to)
	}

	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return domain.Snapshot{}, false, ErrNotFound
	}
	changed := false
	if e.session.Status == domain.StatusRunning {
		e.session.Status = to
		e.session.FinishedAt = time.Now()
		changed = true
	}
	snap := e.session.Snapshot()
	cancel := e.cancel
	r.mu.Unlock()

	if changed && cancel != nil {
		cancel()
	}
	return snap, changed, nil
}

// record applies fn to the session while it is still Running and returns
// the resulting snapshot. It is the only path by which counters and cursors
// change, so nothing moves once a session has stopped.
func (r *Registry) record(id string, fn func(s *domain.Session)) (domain.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.session.Status != domain.StatusRunning {
		return domain.Snapshot{}, false
	}
	fn(e.session)
	return e.session.Snapshot(), true
}

// running returns the ids of sessions still Running.
func (r *Registry) running() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.order {
		if r.sessions[id].session.Status == domain.StatusRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

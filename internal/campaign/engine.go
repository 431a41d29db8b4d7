package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/gateway"
	"github.com/google/uuid"
)

// DefaultDelay is used when a start request carries no usable delay.
const DefaultDelay = 20 * time.Second

// StartInput is a validated-on-Start campaign request. Inline lists, when
// non-empty, replace the lists loaded from uploaded files.
type StartInput struct {
	Destination string
	Prefix      string
	// DelaySeconds is the raw delay field; empty, non-numeric or negative
	// values fall back to the engine default.
	DelaySeconds string
	Loop         bool

	FileCredentials   []domain.Credential
	InlineCredentials []domain.Credential
	FileMessages      []string
	InlineMessages    []string
}

// Options configures an Engine.
type Options struct {
	// DefaultDelay applies when a request carries no usable delay. Zero
	// means no delay; a negative value selects the package DefaultDelay.
	DefaultDelay time.Duration
	Logger       *slog.Logger
	// NewID overrides session id generation.
	NewID func() string
}

// Engine owns the registry and the dispatch loops.
type Engine struct {
	reg          *Registry
	gw           gateway.Gateway
	pub          Publisher
	logger       *slog.Logger
	defaultDelay time.Duration
	newID        func() string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates an engine that sends through gw and publishes to pub.
func NewEngine(gw gateway.Gateway, pub Publisher, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultDelay < 0 {
		opts.DefaultDelay = DefaultDelay
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return "session-" + uuid.NewString() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		reg:          NewRegistry(),
		gw:           gw,
		pub:          pub,
		logger:       opts.Logger,
		defaultDelay: opts.DefaultDelay,
		newID:        opts.NewID,
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

// Start validates in, registers a session and launches its dispatch loop.
// It returns as soon as the session is registered.
func (e *Engine) Start(in StartInput) (domain.Snapshot, error) {
	destination := strings.TrimSpace(in.Destination)
	if destination == "" {
		return domain.Snapshot{}, invalid("destination is required")
	}
	prefix := strings.TrimSpace(in.Prefix)
	if prefix == "" {
		return domain.Snapshot{}, invalid("message prefix is required")
	}

	creds := in.FileCredentials
	if len(in.InlineCredentials) > 0 {
		creds = in.InlineCredentials
	}
	messages := in.FileMessages
	if len(in.InlineMessages) > 0 {
		messages = in.InlineMessages
	}
	if len(creds) == 0 {
		return domain.Snapshot{}, invalid("at least one credential set is required")
	}
	if len(messages) == 0 {
		return domain.Snapshot{}, invalid("at least one message is required")
	}

	if err := e.baseCtx.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("engine is shutting down: %w", err)
	}

	s := domain.NewSession(e.newID(), destination, prefix, e.parseDelay(in.DelaySeconds), in.Loop,
		append([]domain.Credential(nil), creds...), append([]string(nil), messages...))

	ctx, cancel := context.WithCancel(e.baseCtx)
	if err := e.reg.Create(s, cancel); err != nil {
		cancel()
		return domain.Snapshot{}, fmt.Errorf("register session: %w", err)
	}
	snap, err := e.reg.Get(s.ID)
	if err != nil {
		cancel()
		return domain.Snapshot{}, err
	}

	d := &dispatcher{
		session: s,
		reg:     e.reg,
		gw:      e.gw,
		pub:     e.pub,
		logger:  e.logger.With("session_id", s.ID),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		d.run(ctx)
	}()

	return snap, nil
}

// Status returns a point-in-time snapshot of the session.
func (e *Engine) Status(id string) (domain.Snapshot, error) {
	return e.reg.Get(id)
}

// List returns snapshots of every session known to the engine.
func (e *Engine) List() []domain.Snapshot {
	return e.reg.List()
}

// Stop cancels a session. Stopping a finished session is a no-op that still
// reports its counts.
func (e *Engine) Stop(id string) (domain.Snapshot, error) {
	snap, changed, err := e.reg.transition(id, domain.StatusStopped)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if changed {
		e.logger.Info("Session stopped by request", "session_id", id, "sent", snap.SentCount, "failed", snap.FailedCount)
	}
	return snap, nil
}

// Shutdown stops every running session and waits for the loops to return
// or for ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, id := range e.reg.running() {
		if _, err := e.reg.SetStatus(id, domain.StatusStopped); err != nil {
			e.logger.Warn("Failed to stop session during shutdown", "session_id", id, "error", err)
		}
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for dispatch loops: %w", ctx.Err())
	}
}

func (e *Engine) parseDelay(raw string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return e.defaultDelay
	}
	return time.Duration(n) * time.Second
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
)

// Timeouts bounds each gateway call. Zero disables the bound for that call.
type Timeouts struct {
	Authenticate time.Duration
	Send         time.Duration
	Release      time.Duration
}

type timeoutGateway struct {
	next     Gateway
	timeouts Timeouts
}

// WithTimeouts wraps g so that a call that does not return within its bound
// fails with ErrTimeout, even if g ignores ctx. Handles it returns are used
// by one call at a time: a call that was given up on keeps its handle busy
// until it really returns, and the next Send or Release waits for it.
func WithTimeouts(g Gateway, t Timeouts) Gateway {
	return &timeoutGateway{next: g, timeouts: t}
}

// errBusy marks a call that never reached the wrapped gateway because an
// abandoned call still held the handle.
var errBusy = errors.New("handle busy with an earlier call")

// guardedHandle serializes calls on one wrapped handle.
type guardedHandle struct {
	Handle
	slot chan struct{}
}

func guard(h Handle) *guardedHandle {
	return &guardedHandle{Handle: h, slot: make(chan struct{}, 1)}
}

type authResult struct {
	h   Handle
	err error
}

func (g *timeoutGateway) Authenticate(ctx context.Context, cred domain.Credential) (Handle, error) {
	if g.timeouts.Authenticate <= 0 {
		h, err := g.next.Authenticate(ctx, cred)
		if err != nil {
			return nil, err
		}
		return guard(h), nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.Authenticate)
	defer cancel()

	done := make(chan authResult, 1)
	go func() {
		h, err := g.next.Authenticate(ctx, cred)
		done <- authResult{h: h, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return guard(res.h), nil
	case <-ctx.Done():
		// A handle that shows up after we gave up would leak; release it.
		go func() {
			res := <-done
			if res.err == nil && res.h != nil {
				releaseCtx, cancel := context.WithTimeout(context.Background(), g.releaseTimeout())
				defer cancel()
				if err := g.next.Release(releaseCtx, res.h); err != nil {
					slog.Debug("Failed to release late handle", "identity", res.h.Identity(), "error", err)
				}
			}
		}()
		return nil, deadlineError(ctx, "authenticate")
	}
}

func (g *timeoutGateway) Send(ctx context.Context, h Handle, destination, text string) error {
	return g.call(ctx, "send", g.timeouts.Send, h, func(ctx context.Context, inner Handle) error {
		return g.next.Send(ctx, inner, destination, text)
	})
}

// Release logs out h. If an abandoned call still holds the handle past the
// release bound, the logout is handed to a goroutine that runs it once that
// call returns.
func (g *timeoutGateway) Release(ctx context.Context, h Handle) error {
	err := g.call(ctx, "release", g.timeouts.Release, h, g.next.Release)
	if !errors.Is(err, errBusy) {
		return err
	}

	gh := h.(*guardedHandle)
	go func() {
		gh.slot <- struct{}{}
		defer func() { <-gh.slot }()
		releaseCtx, cancel := context.WithTimeout(context.Background(), g.releaseTimeout())
		defer cancel()
		if err := g.next.Release(releaseCtx, gh.Handle); err != nil {
			slog.Debug("Failed deferred release", "identity", gh.Identity(), "error", err)
		}
	}()
	return err
}

// call runs fn against the unwrapped handle under the bound d. The handle
// slot is taken before fn starts and given back only when fn returns, so an
// abandoned fn keeps later calls out.
func (g *timeoutGateway) call(ctx context.Context, op string, d time.Duration, h Handle, fn func(context.Context, Handle) error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	inner := h
	var slot chan struct{}
	if gh, ok := h.(*guardedHandle); ok {
		inner, slot = gh.Handle, gh.slot
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", deadlineError(ctx, op), errBusy)
		}
	}

	done := make(chan error, 1)
	go func() {
		err := fn(ctx, inner)
		if slot != nil {
			<-slot
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return deadlineError(ctx, op)
	}
}

func (g *timeoutGateway) releaseTimeout() time.Duration {
	if g.timeouts.Release > 0 {
		return g.timeouts.Release
	}
	return 10 * time.Second
}

func deadlineError(ctx context.Context, op string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, ctx.Err())
}

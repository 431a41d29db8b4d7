package campaign

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/gateway"
)

const idlePassBackoff = time.Second

// Publisher receives progress events.
type Publisher interface {
	Publish(e domain.Event)
}

// dispatcher walks the credential x message matrix for one session. The
// session's configuration fields are immutable after creation and read
// without locking; counters go through the registry.
type dispatcher struct {
	session *domain.Session
	reg     *Registry
	gw      gateway.Gateway
	pub     Publisher
	logger  *slog.Logger
}

func (d *dispatcher) run(ctx context.Context) {
	s := d.session
	d.logger.Info("Session started",
		"credentials", len(s.Credentials),
		"messages", len(s.Messages),
		"total", s.TotalPlanned,
		"loop", s.Loop,
		"delay", s.Delay)

	pass := 0
outer:
	for ctx.Err() == nil {
		pass++
		attempted := false
		for ci := range s.Credentials {
			if ctx.Err() != nil {
				break outer
			}
			if _, ok := d.reg.record(s.ID, func(x *domain.Session) { x.CredentialIndex = ci }); !ok {
				break outer
			}
			if d.runCredential(ctx, ci) {
				attempted = true
			}
		}

		if !s.Loop || ctx.Err() != nil {
			break
		}
		d.reg.record(s.ID, func(x *domain.Session) {
			x.CredentialIndex = 0
			x.MessageIndex = 0
		})
		d.logger.Info("Looping back to start", "pass", pass)
		if !attempted {
			// Every login failed; pause so a dead credential list cannot spin.
			sleep(ctx, max(s.Delay, idlePassBackoff))
		}
	}

	if ctx.Err() != nil {
		// Cancelled without going through Stop (engine shutdown path).
		if snap, changed, err := d.reg.transition(s.ID, domain.StatusStopped); err == nil && changed {
			d.logger.Info("Session cancelled", "sent", snap.SentCount, "failed", snap.FailedCount)
		} else {
			d.logger.Info("Session stopped")
		}
		return
	}

	snap, changed, err := d.reg.transition(s.ID, domain.StatusCompleted)
	if err != nil || !changed {
		d.logger.Info("Session stopped")
		return
	}
	d.logger.Info("Session completed", "sent", snap.SentCount, "failed", snap.FailedCount, "success_rate", snap.SuccessRate())
	d.pub.Publish(domain.Event{
		SessionID:   s.ID,
		Type:        domain.EventCompleted,
		TotalSent:   snap.SentCount,
		TotalFailed: snap.FailedCount,
		SuccessRate: snap.SuccessRate(),
	})
}

// runCredential logs in with one credential set and sends every message
// through it. A failed login charges the whole batch at once. It reports
// whether any send was attempted.
func (d *dispatcher) runCredential(ctx context.Context, ci int) bool {
	s := d.session
	logger := d.logger.With("credential", ci+1)

	logger.Info("Logging in", "of", len(s.Credentials))
	h, err := d.gw.Authenticate(ctx, s.Credentials[ci])
	if err != nil {
		snap, ok := d.reg.record(s.ID, func(x *domain.Session) { x.FailedCount += len(x.Messages) })
		if !ok {
			return false
		}
		logger.Warn("Login failed", "error", err)
		d.pub.Publish(domain.Event{
			SessionID:   s.ID,
			Type:        domain.EventLoginFailed,
			Credential:  ci + 1,
			Error:       err.Error(),
			TotalSent:   snap.SentCount,
			TotalFailed: snap.FailedCount,
		})
		return false
	}
	defer d.release(ctx, logger, h)

	attempted := false
	for mi := range s.Messages {
		if ctx.Err() != nil {
			return attempted
		}
		if _, ok := d.reg.record(s.ID, func(x *domain.Session) { x.MessageIndex = mi }); !ok {
			return attempted
		}

		sendErr := d.gw.Send(ctx, h, s.Destination, s.ComposeText(mi))
		attempted = true
		if !d.recordAttempt(logger, ci, mi, sendErr) {
			return attempted
		}

		if ctx.Err() == nil {
			sleep(ctx, s.Delay)
		}
	}
	return attempted
}

// recordAttempt books one send outcome and emits its event. It returns false
// when the session is no longer Running.
func (d *dispatcher) recordAttempt(logger *slog.Logger, ci, mi int, sendErr error) bool {
	s := d.session
	if sendErr == nil {
		snap, ok := d.reg.record(s.ID, func(x *domain.Session) { x.SentCount++ })
		if !ok {
			return false
		}
		logger.Debug("Message sent", "message", mi+1, "sent", snap.SentCount, "total", snap.TotalPlanned)
		d.pub.Publish(domain.Event{
			SessionID:   s.ID,
			Type:        domain.EventMessageSent,
			Credential:  ci + 1,
			Message:     mi + 1,
			TotalSent:   snap.SentCount,
			TotalFailed: snap.FailedCount,
		})
		return true
	}

	snap, ok := d.reg.record(s.ID, func(x *domain.Session) { x.FailedCount++ })
	if !ok {
		return false
	}
	logger.Warn("Failed to send message", "message", mi+1, "error", sendErr)
	d.pub.Publish(domain.Event{
		SessionID:   s.ID,
		Type:        domain.EventMessageFailed,
		Credential:  ci + 1,
		Message:     mi + 1,
		Error:       sendErr.Error(),
		TotalSent:   snap.SentCount,
		TotalFailed: snap.FailedCount,
	})
	return true
}

// release logs out best-effort; it still runs after cancellation.
func (d *dispatcher) release(ctx context.Context, logger *slog.Logger, h gateway.Handle) {
	if err := d.gw.Release(context.WithoutCancel(ctx), h); err != nil {
		logger.Warn("Logout failed", "error", err)
		return
	}
	logger.Debug("Logged out")
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/ashureev/campaignd/internal/domain"
)

// DryRun is a Gateway that never contacts an external platform. It accepts
// any non-empty credential and logs each message it would have sent.
type DryRun struct {
	logger *slog.Logger
	sent   atomic.Int64
}

// NewDryRun creates a logging-only gateway.
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger}
}

type dryRunHandle struct {
	id string
}

func (h dryRunHandle) Identity() string { return h.id }

// Authenticate derives a stable identity from the credential bytes.
func (d *DryRun) Authenticate(ctx context.Context, cred domain.Credential) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cred) == 0 || string(cred) == `""` || string(cred) == "null" {
		return nil, errors.New("empty credential")
	}
	sum := sha256.Sum256(cred)
	h := dryRunHandle{id: "dry-" + hex.EncodeToString(sum[:6])}
	d.logger.Info("Dry-run login", "identity", h.id)
	return h, nil
}

// Send logs the message instead of transmitting it.
func (d *DryRun) Send(ctx context.Context, h Handle, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := d.sent.Add(1)
	d.logger.Info("Dry-run send", "identity", h.Identity(), "destination", destination, "bytes", len(text), "total", n)
	return nil
}

// Release logs the logout.
func (d *DryRun) Release(_ context.Context, h Handle) error {
	d.logger.Debug("Dry-run logout", "identity", h.Identity())
	return nil
}

// Sent returns how many messages were accepted.
func (d *DryRun) Sent() int64 {
	return d.sent.Load()
}

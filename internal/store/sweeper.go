package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired uploads are removed.
const DefaultSweepInterval = 5 * time.Minute

// RunSweeper periodically deletes uploads older than ttl until ctx ends.
// It blocks; callers run it in its own goroutine.
func RunSweeper(ctx context.Context, repo Repository, ttl, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Upload sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			sweepUploads(ctx, repo, ttl)
		case <-ctx.Done():
			slog.Info("Upload sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func sweepUploads(ctx context.Context, repo Repository, ttl time.Duration) {
	deleted, err := repo.DeleteUploadsOlderThan(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Upload sweep interrupted", "error", err)
			return
		}
		slog.Error("Upload sweeper failed to delete expired uploads", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Upload sweeper removed expired uploads", "count", deleted)
	}
}

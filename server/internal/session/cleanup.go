package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/devilmonastery/pocketid-dashboard/internal/pkg/metrics"
)

// RunCleanup sweeps expired session rows on a fixed interval until ctx ends.
// Runs once immediately so restarts do not leave stale rows sitting for a
// full interval.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	m.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	n, err := m.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		m.log.Error("session cleanup failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		m.log.Info("swept expired sessions", slog.Int64("count", n))
		metrics.SessionsDestroyed.WithLabelValues("sweep").Add(float64(n))
	}
}

package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ExpireInterval is the active-expiry sweep period (spec §4.5: "1 Hz").
const ExpireInterval = time.Second

// RunActiveExpire runs the periodic eviction sweep until ctx is cancelled.
// It is cooperative: if a sweep is still running when the next tick fires,
// that tick is skipped rather than queued (spec §5: "the 1 Hz expiry task
// is cooperative: it skips a tick if the previous tick has not returned").
// This cannot actually happen with ExpireOnce as written (it never blocks
// on anything but its own mutex), but the guard keeps the behavior correct
// if ExpireOnce grows a slower eviction path later.
func (s *Store) RunActiveExpire(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(ExpireInterval)
	defer ticker.Stop()

	var busy atomic.Bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				logger.Debug("skipping expiry tick, previous tick still running")
				continue
			}
			removed := s.ExpireOnce()
			busy.Store(false)
			if removed > 0 {
				logger.Debug("evicted expired forwarding entries", slog.Int("count", removed))
			}
		}
	}
}

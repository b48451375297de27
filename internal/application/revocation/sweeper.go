// Package revocation purges logout revocations once the tokens they cover
// have expired on their own.
package revocation

import (
	"context"
	"log/slog"
	"time"
)

type store interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type purgeRecorder interface {
	Purged(n int64)
}

// Sweeper periodically removes expired revocation entries. It only reclaims
// space; skipping or delaying a pass never changes request behavior.
type Sweeper struct {
	store    store
	interval time.Duration
	metrics  purgeRecorder
	now      func() time.Time
}

func NewSweeper(s store, interval time.Duration, metrics purgeRecorder) *Sweeper {
	return &Sweeper{store: s, interval: interval, metrics: metrics, now: time.Now}
}

// SweepOnce runs a single purge pass and returns the number of entries removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Purged(n)
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Failures are logged.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				slog.Warn("revocation sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("revocation sweep", "purged", n)
			}
		}
	}
}

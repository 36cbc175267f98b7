// Package approval holds the expiry sweep for approval requests. Creation,
// resolution, and reads live in the service and repository subpackages.
package approval

import (
	"context"
	"log"
	"time"
)

// StaleExpirer expires pending requests created before a cutoff.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically moves stale pending requests to timeout so rows left
// behind by crashed or stalled clients do not accumulate. The retention
// window is independent of, and must be longer than, any coordinator timeout.
type Sweeper struct {
	repo      StaleExpirer
	retention time.Duration
	interval  time.Duration
	nowF      func() time.Time
}

// NewSweeper returns a Sweeper expiring requests older than retention, every interval.
func NewSweeper(repo StaleExpirer, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:      repo,
		retention: retention,
		interval:  interval,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on a ticker until ctx is cancelled. Sweep failures are logged
// and retried on the next tick; the loop never aborts on error.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.nowF().Add(-s.retention)
	n, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		log.Printf("approval: expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("approval: expired %d stale pending request(s)", n)
	}
}

package ingestion

import (
	"context"
	"time"

	"github.com/archivecast/podgen/internal/ports"
)

// BackgroundScheduler runs a job immediately on Start and then on a fixed
// interval, adapted from the teacher's
// internal/infrastructure/scheduler.CronScheduler (same Start(ctx,
// job)/Stop(ctx) shape and time.Ticker idiom), repointed from a once-a-day
// digest at startup ingestion refresh (§5: "launched at startup as a
// background task; the server starts accepting requests before it
// completes").
type BackgroundScheduler struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.BackgroundJob = (*BackgroundScheduler)(nil)

// NewBackgroundScheduler builds a scheduler that re-runs its job every
// interval.
func NewBackgroundScheduler(interval time.Duration) *BackgroundScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &BackgroundScheduler{interval: interval}
}

// Start launches job in the background, running it once immediately and then
// every interval until Stop or ctx is cancelled.
func (s *BackgroundScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the background goroutine.
func (s *BackgroundScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}

package update

import (
	"context"
	"errors"
	"time"

	"github.com/matt0x6f/cascade-core/internal/logger"
)

// Scheduler runs background update checks: once after Delay, then every
// Interval until its context is cancelled.
type Scheduler struct {
	controller *Controller
	delay      time.Duration
	interval   time.Duration
}

// NewScheduler creates a scheduler for c
func NewScheduler(c *Controller, delay, interval time.Duration) *Scheduler {
	return &Scheduler{controller: c, delay: delay, interval: interval}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		s.check(ctx)
	}

	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	_, err := s.controller.CheckForUpdates(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidTransition):
		// An update is on offer or downloading; nothing to refresh
		logger.Log.Debug().Str("state", string(s.controller.State())).Msg("Skipping scheduled update check")
	case errors.Is(err, context.Canceled):
	default:
		logger.Log.Warn().Err(err).Msg("Scheduled update check failed")
	}
}

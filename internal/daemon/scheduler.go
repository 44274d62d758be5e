package daemon

import (
	"context"
	"time"

	"github.com/bnema/itcsync/internal/application"
	"github.com/bnema/itcsync/internal/logging"
)

const defaultInterval = 30 * time.Second

// Runner runs one discovery pass over every project.
type Runner interface {
	RunAll(ctx context.Context) ([]application.RunReport, error)
}

// Scheduler triggers a sync pass right away and then on every tick. A failed
// pass is logged and retried on the next tick; it never restarts the service.
type Scheduler struct {
	runner   Runner
	interval time.Duration
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{runner: runner, interval: interval}
}

func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) String() string {
	return "sync-scheduler"
}

func (s *Scheduler) runOnce(ctx context.Context) {
	reports, err := s.runner.RunAll(ctx)
	if err != nil && ctx.Err() == nil {
		logging.Warn().Err(err).Int("projects", len(reports)).Msg("sync pass finished with errors")
		return
	}

	dispatched := 0
	for _, report := range reports {
		dispatched += report.Dispatched
	}
	logging.Debug().Int("projects", len(reports)).Int("dispatched", dispatched).Msg("sync pass finished")
}

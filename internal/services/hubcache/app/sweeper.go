package app

import (
	"context"
	"log"
	"time"

	"github.com/subdogs/hub/internal/platform/timeouts"
)

const defaultSweepInterval = 5 * time.Minute

type sweepRunner interface {
	Sweep(ctx context.Context) (SweepReport, error)
}

// Sweeper runs Sweep on a fixed interval.
type Sweeper struct {
	service  sweepRunner
	interval time.Duration
	onResult func(SweepReport, error)
}

// NewSweeper returns a sweeper over service. onResult, when set, observes
// every pass.
func NewSweeper(service sweepRunner, interval time.Duration, onResult func(SweepReport, error)) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{service: service, interval: interval, onResult: onResult}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.service == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, timeouts.SweepPass)
	defer cancel()

	report, err := s.service.Sweep(passCtx)
	if err != nil {
		log.Printf("cache sweep failed after %d removals: %v", report.Total, err)
	} else if report.Total > 0 {
		log.Printf("cache sweep removed %d expired records", report.Total)
	}
	if s.onResult != nil {
		s.onResult(report, err)
	}
}

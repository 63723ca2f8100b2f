// Package sched runs the engine's periodic maintenance jobs.
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/infra/metrics"
)

// Locker elects one runner per tick when several replicas share a store.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// JobFunc does one pass and reports how many records it touched.
type JobFunc func(ctx context.Context) (int, error)

// Runner calls a JobFunc every interval until its context ends.
type Runner struct {
	name     string
	interval time.Duration
	job      JobFunc
	locker   Locker
	log      *zerolog.Logger
}

func NewRunner(name string, interval time.Duration, job JobFunc, locker Locker, logger *zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "sched").Str("job", name).Logger()
	return &Runner{name: name, interval: interval, job: job, locker: locker, log: &l}
}

// Run blocks until ctx is cancelled. The first pass runs immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("starting job")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stopping job")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one pass, skipping it when another replica holds the lock.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	if r.locker != nil {
		key := "lock:job:" + r.name
		token, err := r.locker.TryLock(ctx, key, r.interval)
		if err != nil {
			metrics.IncJobRun(r.name, "skipped")
			r.log.Debug().Err(err).Msg("job lock not acquired")
			return 0, nil
		}
		defer func() {
			// the lock outlives a cancelled ctx otherwise
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.locker.Unlock(uctx, key, token); err != nil {
				r.log.Warn().Err(err).Msg("job unlock failed")
			}
		}()
	}

	n, err := r.job(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return n, err
		}
		metrics.IncJobRun(r.name, "error")
		r.log.Error().Err(err).Msg("job failed")
		return n, err
	}
	metrics.IncJobRun(r.name, "ok")
	if n > 0 {
		r.log.Info().Int("count", n).Msg("job pass done")
	}
	return n, nil
}

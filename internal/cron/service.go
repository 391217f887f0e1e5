package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs the retention jobs on a fixed cadence. A distributed
// lock keeps a single worker active per cycle, so multiple replicas can
// run the binary without duplicating prune work.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}

	svc := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run executes one cycle immediately, then repeats on the interval until the
// context is canceled. A failed cycle is logged and the loop continues.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.cycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "another cron instance holds the lock; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

// runJob never propagates a job error; one broken job must not starve
// the others in the same cycle.
func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	s.logg.Info(jobCtx, "job start")

	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)

	s.metrics.ObserveDuration(name, elapsed)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(jobCtx, "job completed")
}

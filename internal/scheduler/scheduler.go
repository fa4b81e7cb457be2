// Package scheduler repeats the weekly run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/musicpulse/internal/logger"
)

// Job is one pipeline run.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	schedule cron.Schedule
	log      *slog.Logger
}

// New validates spec (standard five-field cron or a descriptor such as
// "@weekly") and registers job. Overlapping runs are skipped.
func New(ctx context.Context, spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	log := logger.With("scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{cron: c, location: loc, schedule: sched, log: log}

	c.Schedule(sched, cron.FuncJob(func() {
		started := time.Now()
		log.Info("scheduled run starting")
		if err := job(ctx); err != nil {
			log.Error("scheduled run failed", "error", err)
			return
		}
		log.Info("scheduled run finished", "duration", time.Since(started).Round(time.Millisecond),
			"next", s.Next(time.Now()))
	}))
	return s, nil
}

// Next returns the first activation after t in the scheduler's location.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Run blocks until ctx is done, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started", "next", s.Next(time.Now()))

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
}

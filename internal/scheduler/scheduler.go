// Package scheduler optionally runs ReloadConfig on a cron schedule,
// supplementing the admin socket's on-demand ReloadConfig command.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/neo6/tn3270gw/internal/gwlog"
)

// Scheduler wraps a single cron-scheduled job: reloading configuration.
// Unlike the teacher's full event table, this only ever registers one
// job, since the gateway has exactly one thing worth scheduling.
type Scheduler struct {
	Schedule string
	Reload   func()

	cron *cron.Cron
	log  *gwlog.Logger
}

// New builds a Scheduler that will call reload on the given cron
// schedule once Start runs. logger may be nil.
func New(schedule string, reload func(), logger *gwlog.Logger) *Scheduler {
	if logger == nil {
		logger = gwlog.New()
	}
	return &Scheduler{Schedule: schedule, Reload: reload, log: logger}
}

// Start registers the reload job and blocks until ctx is cancelled,
// then stops the cron scheduler gracefully (waiting for any in-flight
// job to finish) before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.Schedule == "" {
		<-ctx.Done()
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(s.Schedule, func() {
		s.log.Infof("scheduler: running scheduled ReloadConfig")
		s.Reload()
	}); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", s.Schedule, err)
	}

	s.cron.Start()
	s.log.Infof("scheduler: scheduled ReloadConfig on %q", s.Schedule)

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops accepting new runs and waits for any in-flight run to
// finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Infof("scheduler: stopped")
}

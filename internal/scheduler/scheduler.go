// Package scheduler provides cron-based background job scheduling for FixPipe.
//
// It runs maintenance jobs such as periodic intent catalog reloads so that
// catalog edits on disk are picked up without restarting the server.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Reloader is anything whose state can be refreshed from its backing source.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddReloadJob schedules periodic reloads of r. A reload failure is logged
// and the previously loaded state stays active until the next attempt.
func (s *Scheduler) AddReloadJob(expr string, r Reloader) error {
	return s.AddJob(expr, func() {
		if err := r.Reload(context.Background()); err != nil {
			slog.Warn("Scheduler.AddReloadJob: scheduled reload failed", "error", err)
			return
		}
		slog.Debug("Scheduler.AddReloadJob: scheduled reload completed")
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

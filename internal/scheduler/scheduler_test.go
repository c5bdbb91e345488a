package scheduler

import (
	"context"
	"errors"
	"testing"
)

type countingReloader struct {
	calls int
	err   error
}

func (r *countingReloader) Reload(_ context.Context) error {
	r.calls++
	return r.err
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
}

func TestSchedulerAddJobInvalidExpr(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid cron expression, got nil")
	}
}

func TestSchedulerAddReloadJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	r := &countingReloader{err: errors.New("transient")}
	if err := s.AddReloadJob("* * * * *", r); err != nil {
		t.Errorf("Expected no error scheduling reload job, got %v", err)
	}
}

package cron

import (
	"context"
	"io"
	"testing"

	"github.com/platefulhq/plateful-backend/pkg/logger"
)

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &countingJob{name: "cart-expiry"}
	svc := newCronServiceForTest(t, &fakeLock{acquired: false}, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs without the lock, got %d", job.runs)
	}
}

func TestServiceRunCycleRunsJobsAndReleasesLock(t *testing.T) {
	t.Parallel()

	first := &countingJob{name: "cart-expiry"}
	second := &countingJob{name: "outbox-retention"}
	lock := &fakeLock{acquired: true}
	svc := newCronServiceForTest(t, lock, first, second)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", first.runs, second.runs)
	}
	if !lock.released {
		t.Fatal("expected the lock to be released after the cycle")
	}
}

func newCronServiceForTest(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	log := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Logger:   log,
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

type countingJob struct {
	name string
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(ctx context.Context) error {
	c.runs++
	return nil
}

type fakeLock struct {
	acquired bool
	released bool
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	return f.acquired, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released = true
	return nil
}

package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type testJob struct {
	name  string
	err   error
	every time.Duration
	runs  int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type scheduledJob struct{ testJob }

func (s *scheduledJob) Every() time.Duration { return s.every }

type panickyJob struct{}

func (panickyJob) Name() string              { return "panicky" }
func (panickyJob) Run(context.Context) error { panic("nil map") }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestTickRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(ok, bad),
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	require.NoError(t, svc.tick(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)
}

func TestTickSurvivesPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(panickyJob{}, after),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.tick(context.Background()))
	assert.Equal(t, 1, after.runs)
	assert.False(t, lock.held, "lock is released after the tick")
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "x"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	require.NoError(t, err)

	require.NoError(t, svc.tick(context.Background()))
	assert.Zero(t, job.runs)
}

func TestTickReportsLockError(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(&testJob{name: "x"}),
		Lock:     &fakeLock{err: errors.New("redis down")},
	})
	require.NoError(t, err)
	assert.Error(t, svc.tick(context.Background()))
}

func TestTickHonoursJobCadence(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	daily := &scheduledJob{testJob{name: "daily", every: 24 * time.Hour}}
	every := &testJob{name: "every-cycle"}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(daily, every),
		Lock:     lock,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.tick(ctx))
	now = now.Add(time.Hour)
	require.NoError(t, svc.tick(ctx))
	assert.Equal(t, 1, daily.runs)
	assert.Equal(t, 2, every.runs)

	now = now.Add(24 * time.Hour)
	require.NoError(t, svc.tick(ctx))
	assert.Equal(t, 2, daily.runs)
	assert.Equal(t, 3, lock.acquires)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}, Interval: time.Hour})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}

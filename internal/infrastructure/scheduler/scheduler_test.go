package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/erp/odoosync/internal/application/ordersync"
	"github.com/erp/odoosync/internal/domain/ordersync"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context, run *JobRun) error
}

func (j *funcJob) Name() string { return j.name }

func (j *funcJob) Run(ctx context.Context, run *JobRun) error { return j.fn(ctx, run) }

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(t)
	job := &funcJob{name: "a", fn: func(context.Context, *JobRun) error { return nil }}

	require.NoError(t, s.Register(job, time.Minute))
	assert.ErrorIs(t, s.Register(job, time.Minute), ErrInvalidConfig)
	assert.ErrorIs(t, s.Register(&funcJob{name: "b"}, 0), ErrInvalidConfig)
	assert.Equal(t, []string{"a"}, s.Jobs())
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.Register(&funcJob{name: "ok", fn: func(_ context.Context, run *JobRun) error {
		run.Complete(3, 2, 1)
		return nil
	}}, time.Hour))
	require.NoError(t, s.Register(&funcJob{name: "boom", fn: func(context.Context, *JobRun) error {
		return errors.New("boom")
	}}, time.Hour))

	_, err := s.RunNow(context.Background(), "ok")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	run, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPartial, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.NotNil(t, run.CompletedAt)

	run, err = s.RunNow(context.Background(), "boom")
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, "boom", history[0].Job)
	assert.Equal(t, "ok", history[1].Job)
	assert.Len(t, s.History(1), 1)
}

func TestRunNow_NoOverlap(t *testing.T) {
	s := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Register(&funcJob{name: "slow", fn: func(context.Context, *JobRun) error {
		close(started)
		<-release
		return nil
	}}, time.Hour))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.RunNow(context.Background(), "slow")
	}()
	<-started

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)

	close(release)
	wg.Wait()
}

func TestStart_TicksJobs(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.Register(&funcJob{name: "tick", fn: func(context.Context, *JobRun) error {
		runs.Add(1)
		return nil
	}}, 10*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestHistoryCapped(t *testing.T) {
	s, err := New(Config{JobTimeout: time.Second, MaxHistory: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Register(&funcJob{name: "a", fn: func(context.Context, *JobRun) error { return nil }}, time.Hour))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "a")
		require.NoError(t, err)
	}
	assert.Len(t, s.History(0), 2)
}

// ---- jobs ----

type fakeResender struct {
	limit  int
	source ordersync.TriggerSource
	result appsync.BatchResult
	err    error
}

func (f *fakeResender) ResendFailed(ctx context.Context, limit int) (appsync.BatchResult, error) {
	f.limit = limit
	f.source = ordersync.ActorFromContext(ctx).Source
	return f.result, f.err
}

func TestResendFailedJob(t *testing.T) {
	resender := &fakeResender{result: appsync.BatchResult{
		ProcessedIDs: []int64{1, 2},
		FailedIDs:    []int64{3},
	}}
	job := NewResendFailedJob(resender, 25)
	run := newJobRun(job.Name())

	require.NoError(t, job.Run(context.Background(), run))
	assert.Equal(t, 25, resender.limit)
	assert.Equal(t, ordersync.TriggerCronJob, resender.source)
	assert.Equal(t, RunStatusPartial, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Succeeded)
}

func TestResendFailedJob_EmptyQueue(t *testing.T) {
	job := NewResendFailedJob(&fakeResender{}, 10)
	run := newJobRun(job.Name())

	require.NoError(t, job.Run(context.Background(), run))
	assert.Equal(t, RunStatusSuccess, run.Status)
	assert.Zero(t, run.Total)
}

func TestResendFailedJob_Error(t *testing.T) {
	job := NewResendFailedJob(&fakeResender{err: errors.New("db down")}, 10)
	assert.EqualError(t, job.Run(context.Background(), newJobRun(job.Name())), "db down")
}

type fakeCleaner struct {
	days   int
	result activitylog.CleanupResult
}

func (f *fakeCleaner) Cleanup(_ context.Context, days int) (activitylog.CleanupResult, error) {
	f.days = days
	return f.result, nil
}

func TestActivityCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{result: activitylog.CleanupResult{DaysRemoved: 3, LegacyFilesRemoved: 1}}
	job := NewActivityCleanupJob(cleaner, 30)
	run := newJobRun(job.Name())

	require.NoError(t, job.Run(context.Background(), run))
	assert.Equal(t, 30, cleaner.days)
	assert.Equal(t, RunStatusSuccess, run.Status)
	assert.Equal(t, 4, run.Succeeded)
}

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type funcJob struct {
	id string
	fn func(ctx context.Context) error
}

func (j funcJob) ID() string                        { return j.id }
func (j funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }

// blockingJob signals started once it runs and returns when release closes.
func blockingJob(id string, started chan<- struct{}, release <-chan struct{}) funcJob {
	return funcJob{id: id, fn: func(context.Context) error {
		if started != nil {
			started <- struct{}{}
		}
		<-release
		return nil
	}}
}

func newRunningDispatcher(t *testing.T, workers, queue int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(workers, queue, quietLogger())
	d.Run()
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcher_DoReturnsJobResult(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 2, 4)

	ran := false
	require.NoError(t, d.Do(context.Background(), funcJob{id: "ok", fn: func(context.Context) error {
		ran = true
		return nil
	}}))
	assert.True(t, ran)

	boom := errors.New("encoder exploded")
	err := d.Do(context.Background(), funcJob{id: "fail", fn: func(context.Context) error { return boom }})
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 2, 8)

	var running, peak int32
	job := funcJob{id: "count", fn: func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}}

	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() { errs <- d.Do(context.Background(), job) }()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDispatcher_QueueFull(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 1, 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() { first <- d.Do(context.Background(), blockingJob("first", started, release)) }()
	<-started

	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() { results <- d.Do(context.Background(), blockingJob("waiting", nil, release)) }()
	}

	// At most two jobs can wait behind the running one.
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrQueueFull)
		case <-time.After(2 * time.Second):
			t.Fatal("expected queue-full rejections")
		}
	}

	close(release)
	require.NoError(t, <-first)
	for i := 0; i < 2; i++ {
		err := <-results
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
		}
	}
}

func TestDispatcher_CanceledJobNeverRuns(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 1, 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	go func() { _ = d.Do(context.Background(), blockingJob("busy", started, release)) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	err := d.Do(ctx, funcJob{id: "late", fn: func(context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&ran))
}

func TestDispatcher_DeadlineWhileQueued(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 1, 2)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	results := make(chan error, 2)
	go func() { results <- d.Do(context.Background(), blockingJob("running", started, release)) }()
	<-started
	go func() { results <- d.Do(context.Background(), blockingJob("waiting", nil, release)) }()

	var ran int32
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	begin := time.Now()
	err := d.Do(ctx, funcJob{id: "deadline", fn: func(context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}})
	elapsed := time.Since(begin)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second, "Do returns when the deadline passes, not when a worker frees up")

	close(release)
	require.NoError(t, <-results)
	require.NoError(t, <-results)

	// Jobs run in queue order, so once this one finishes the expired job has been skipped.
	require.NoError(t, d.Do(context.Background(), funcJob{id: "after", fn: func(context.Context) error { return nil }}))
	assert.Zero(t, atomic.LoadInt32(&ran), "an abandoned job never runs")
}

func TestDispatcher_StartedJobIsWaitedFor(t *testing.T) {
	t.Parallel()
	d := newRunningDispatcher(t, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	var finished int32
	err := d.Do(ctx, funcJob{id: "slow", fn: func(context.Context) error {
		cancel()
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished), "Do returned before the running job ended")
}

func TestNewDispatcher_Sizes(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(0, -1, quietLogger())
	assert.Equal(t, 1, d.MaxWorkers)
	assert.Zero(t, cap(d.JobQueue))
}

func TestDispatcher_Stop(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(1, 1, quietLogger())
	d.Run()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- d.Do(context.Background(), blockingJob("inflight", started, release)) }()
	<-started

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done, "running jobs finish")
	<-stopped

	d.Stop()
	err := d.Do(context.Background(), funcJob{id: "after", fn: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrStopped)
}

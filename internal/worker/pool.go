package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Do when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned for jobs submitted to, or still waiting in, a stopped dispatcher.
	ErrStopped = errors.New("dispatcher stopped")
)

// Job represents a unit of work to be executed.
type Job interface {
	Execute(ctx context.Context) error
	ID() string
}

// Task states. A task leaves taskQueued exactly once, either because a worker
// starts it or because its caller gives up on it.
const (
	taskQueued int32 = iota
	taskStarted
	taskAbandoned
)

// task is a queued job together with its caller's context and reply channel.
type task struct {
	ctx   context.Context
	job   Job
	done  chan error
	state *atomic.Int32
}

func newTask(ctx context.Context, job Job) task {
	return task{ctx: ctx, job: job, done: make(chan error, 1), state: new(atomic.Int32)}
}

// abandon moves a still-queued task to taskAbandoned. It reports false when a
// worker has already started it.
func (t task) abandon() bool {
	return t.state.CompareAndSwap(taskQueued, taskAbandoned)
}

// Worker is responsible for processing jobs.
// It runs in its own goroutine and registers its job channel with the pool whenever it is idle.
type Worker struct {
	ID         int
	WorkerPool chan chan task
	JobChannel chan task
	quit       <-chan struct{}
	wg         *sync.WaitGroup
	logger     *logrus.Logger
}

// NewWorker creates a new Worker.
func NewWorker(id int, workerPool chan chan task, quit <-chan struct{}, wg *sync.WaitGroup, logger *logrus.Logger) Worker {
	return Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan task),
		quit:       quit,
		wg:         wg,
		logger:     logger,
	}
}

// Start makes the Worker listen for jobs on its JobChannel.
func (w Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-w.quit:
				w.logger.WithField("worker", w.ID).Debug("Worker stopping")
				return
			}

			select {
			case t := <-w.JobChannel:
				w.run(t)
			case <-w.quit:
				w.logger.WithField("worker", w.ID).Debug("Worker stopping")
				return
			}
		}
	}()
}

func (w Worker) run(t task) {
	log := w.logger.WithFields(logrus.Fields{"worker": w.ID, "job_id": t.job.ID()})

	if err := t.ctx.Err(); err != nil {
		t.abandon()
		log.Warn("Job abandoned before it started")
		t.done <- err
		return
	}
	if !t.state.CompareAndSwap(taskQueued, taskStarted) {
		log.Warn("Job abandoned before it started")
		t.done <- t.ctx.Err()
		return
	}

	log.Info("Started job")
	err := t.job.Execute(t.ctx)
	if err != nil {
		log.WithError(err).Error("Error processing job")
	} else {
		log.Info("Finished job")
	}
	t.done <- err
}

// Dispatcher manages a pool of workers and dispatches jobs to them.
type Dispatcher struct {
	MaxWorkers int
	WorkerPool chan chan task
	JobQueue   chan task
	Workers    []Worker

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	quit    chan struct{}
	logger  *logrus.Logger
}

// NewDispatcher creates a new Dispatcher. Non-positive sizes fall back to one
// worker and an unbuffered queue.
func NewDispatcher(maxWorkers, jobQueueSize int, logger *logrus.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if jobQueueSize < 0 {
		jobQueueSize = 0
	}
	return &Dispatcher{
		MaxWorkers: maxWorkers,
		WorkerPool: make(chan chan task, maxWorkers),
		JobQueue:   make(chan task, jobQueueSize),
		Workers:    make([]Worker, 0, maxWorkers),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the dispatcher and its workers.
func (d *Dispatcher) Run() {
	d.logger.WithField("workers", d.MaxWorkers).Info("Dispatcher starting")
	for i := 1; i <= d.MaxWorkers; i++ {
		worker := NewWorker(i, d.WorkerPool, d.quit, &d.wg, d.logger)
		d.Workers = append(d.Workers, worker)
		worker.Start()
	}

	go d.dispatch()
}

// dispatch listens to the JobQueue and hands jobs to idle workers. It holds
// one job at a time, so at most len(JobQueue)+1 jobs wait for a worker.
func (d *Dispatcher) dispatch() {
	for {
		select {
		case t := <-d.JobQueue:
			d.assign(t)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) assign(t task) {
	select {
	case jobChannel := <-d.WorkerPool:
		select {
		case jobChannel <- t:
		case <-d.quit:
			t.done <- ErrStopped
		}
	case <-t.ctx.Done():
		t.abandon()
		t.done <- t.ctx.Err()
	case <-d.quit:
		t.done <- ErrStopped
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.JobQueue:
			t.done <- ErrStopped
		default:
			return
		}
	}
}

// Do queues job and waits for it to finish. It fails fast with ErrQueueFull
// when the queue has no room. If ctx ends while the job is still queued, Do
// returns the context error at once and the job never runs. A job that has
// already started is always waited for.
func (d *Dispatcher) Do(ctx context.Context, job Job) error {
	t := newTask(ctx, job)
	if err := d.enqueue(t); err != nil {
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		if t.abandon() {
			d.logger.WithField("job_id", job.ID()).Warn("Caller gave up on queued job")
			return ctx.Err()
		}
		return <-t.done
	}
}

func (d *Dispatcher) enqueue(t task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}
	select {
	case d.JobQueue <- t:
		d.logger.WithField("job_id", t.job.ID()).Debug("Job submitted to queue")
		return nil
	default:
		d.logger.WithField("job_id", t.job.ID()).Warn("Job queue full")
		return ErrQueueFull
	}
}

// Stop gracefully shuts down the dispatcher. Running jobs finish; queued jobs
// are answered with ErrStopped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.quit)
	d.mu.Unlock()

	d.logger.Info("Dispatcher: initiating shutdown")
	d.wg.Wait()
	d.logger.Info("Dispatcher: shutdown complete")
}

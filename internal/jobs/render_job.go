package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"roastreel/internal/apperr"
	"roastreel/internal/compositor"
	"roastreel/internal/worker"
)

// Renderer renders one roast video.
type Renderer interface {
	Render(ctx context.Context, req compositor.RenderRequest) (time.Duration, error)
}

// RenderJob defines a job for compositing one roast video.
// It implements the worker.Job interface.
type RenderJob struct {
	JobID    string
	Request  compositor.RenderRequest
	renderer Renderer
	duration time.Duration
}

// NewRenderJob names the job after the request workspace.
func NewRenderJob(renderer Renderer, req compositor.RenderRequest) *RenderJob {
	return &RenderJob{
		JobID:    "render_" + filepath.Base(filepath.Dir(req.OutputPath)),
		Request:  req,
		renderer: renderer,
	}
}

// ID returns the unique identifier for RenderJob.
func (j *RenderJob) ID() string {
	return j.JobID
}

// Execute renders the video and records its duration.
func (j *RenderJob) Execute(ctx context.Context) error {
	duration, err := j.renderer.Render(ctx, j.Request)
	if err != nil {
		return err
	}
	j.duration = duration
	return nil
}

// Duration is the rendered length, valid after a successful Execute.
func (j *RenderJob) Duration() time.Duration {
	return j.duration
}

// QueuedRenderer runs renders on a dispatcher so only a bounded number of
// ffmpeg processes run at once.
type QueuedRenderer struct {
	renderer   Renderer
	dispatcher *worker.Dispatcher
}

func NewQueuedRenderer(renderer Renderer, dispatcher *worker.Dispatcher) *QueuedRenderer {
	return &QueuedRenderer{renderer: renderer, dispatcher: dispatcher}
}

func (q *QueuedRenderer) Render(ctx context.Context, req compositor.RenderRequest) (time.Duration, error) {
	job := NewRenderJob(q.renderer, req)
	err := q.dispatcher.Do(ctx, job)
	switch {
	case err == nil:
		return job.Duration(), nil
	case errors.Is(err, worker.ErrQueueFull):
		return 0, apperr.Busy("render queue is full, try again later").WithCause(err)
	case errors.Is(err, worker.ErrStopped):
		return 0, apperr.Busy("renderer is shutting down").WithCause(err)
	}
	if _, ok := apperr.As(err); ok {
		return 0, err
	}
	return 0, apperr.Render(fmt.Sprintf("render job %s did not complete", job.ID())).WithCause(err)
}

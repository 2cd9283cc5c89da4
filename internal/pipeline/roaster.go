// Package pipeline sequences one roast request: fetch the profile, write the
// commentary, voice it, render the video and publish it.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"roastreel/internal/aiclient"
	"roastreel/internal/apperr"
	"roastreel/internal/compositor"
	"roastreel/internal/db"
	"roastreel/internal/profile"
	"roastreel/models"
)

// Stage names a step of the roast state machine.
type Stage string

const (
	StageReceived     Stage = "received"
	StageFetching     Stage = "fetching"
	StageGenerating   Stage = "generating"
	StageSynthesizing Stage = "synthesizing"
	StageRendering    Stage = "rendering"
	StageUploading    Stage = "uploading"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

const (
	pictureFileName = "profile.jpg"
	outputFileName  = "final_roast.mp4"
	renderDirName   = "render"
)

type ProfileFetcher interface {
	Fetch(ctx context.Context, profileURL string, useCache bool) (models.ProfileRecord, error)
}

type CommentaryWriter interface {
	Generate(ctx context.Context, rec models.ProfileRecord, useCache bool) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text, workDir string) (*aiclient.Speech, error)
}

type Renderer interface {
	Render(ctx context.Context, req compositor.RenderRequest) (time.Duration, error)
}

type Publisher interface {
	Upload(ctx context.Context, localPath, label string) (string, error)
}

// Timeouts bound each stage. Zero means no stage deadline.
type Timeouts struct {
	Profile    time.Duration
	Commentary time.Duration
	Speech     time.Duration
	Render     time.Duration
	Upload     time.Duration
}

// Config holds the filesystem settings of the pipeline.
type Config struct {
	ScratchDir          string
	DefaultProfileImage string
	Timeouts            Timeouts
}

// Deps are the collaborators of a Roaster.
type Deps struct {
	Profiles   ProfileFetcher
	Commentary CommentaryWriter
	Speech     Speaker
	Renderer   Renderer
	Publisher  Publisher
	Recorder   db.Recorder
	HTTPClient *http.Client
}

// Request is one roast request.
type Request struct {
	ProfileURL string
	UseCache   bool
}

// Result is returned for a completed roast.
type Result struct {
	RunID    uuid.UUID
	Handle   string
	VideoURL string
	Duration time.Duration
}

// Roaster runs roast requests. It is safe for concurrent use: each request
// works in its own directory under the scratch root.
type Roaster struct {
	deps   Deps
	cfg    Config
	logger *logrus.Logger

	downloadPicture func(ctx context.Context, httpClient *http.Client, pictureURL, dest string) error
}

func NewRoaster(deps Deps, cfg Config, logger *logrus.Logger) *Roaster {
	if deps.Recorder == nil {
		deps.Recorder = db.NopRecorder{}
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return &Roaster{
		deps:            deps,
		cfg:             cfg,
		logger:          logger,
		downloadPicture: profile.DownloadPicture,
	}
}

// run tracks the state of one request.
type run struct {
	id     uuid.UUID
	handle string
	stage  Stage
	log    *logrus.Entry
}

// Roast runs the full pipeline for req and returns the public video URL.
func (r *Roaster) Roast(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	handle, err := profile.ExtractHandle(req.ProfileURL)
	if err != nil {
		r.logger.WithError(err).WithField("profile_url", req.ProfileURL).Warn("Rejected roast request")
		return nil, err
	}

	cur := &run{handle: handle, stage: StageReceived}
	cur.id, err = r.deps.Recorder.Start(ctx, handle, req.ProfileURL)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to record run start")
		cur.id = uuid.New()
	}
	cur.log = r.logger.WithFields(logrus.Fields{"run_id": cur.id, "handle": handle})
	cur.log.WithField("use_cache", req.UseCache).Info("Roast request received")

	workspace := filepath.Join(r.cfg.ScratchDir, "roast_"+cur.id.String())
	if err := os.MkdirAll(workspace, 0o750); err != nil {
		return nil, r.fail(ctx, cur, fmt.Errorf("create workspace: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			cur.log.WithError(err).WithField("dir", workspace).Warn("Failed to clean up workspace")
		}
	}()

	r.enter(ctx, cur, StageFetching)
	var rec models.ProfileRecord
	err = r.withTimeout(ctx, r.cfg.Timeouts.Profile, func(ctx context.Context) error {
		var err error
		rec, err = r.deps.Profiles.Fetch(ctx, req.ProfileURL, req.UseCache)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, cur, err)
	}

	r.enter(ctx, cur, StageGenerating)
	var text string
	err = r.withTimeout(ctx, r.cfg.Timeouts.Commentary, func(ctx context.Context) error {
		var err error
		text, err = r.deps.Commentary.Generate(ctx, rec, req.UseCache)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, cur, err)
	}

	r.enter(ctx, cur, StageSynthesizing)
	var speech *aiclient.Speech
	err = r.withTimeout(ctx, r.cfg.Timeouts.Speech, func(ctx context.Context) error {
		var err error
		speech, err = r.deps.Speech.Speak(ctx, text, workspace)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, cur, err)
	}

	r.enter(ctx, cur, StageRendering)
	output := filepath.Join(workspace, outputFileName)
	var duration time.Duration
	err = r.withTimeout(ctx, r.cfg.Timeouts.Render, func(ctx context.Context) error {
		var err error
		duration, err = r.deps.Renderer.Render(ctx, compositor.RenderRequest{
			AudioPath:      speech.AudioPath,
			ImagePath:      r.picture(ctx, cur, rec.ProfilePicture, workspace),
			TranscriptPath: speech.TranscriptPath,
			OutputPath:     output,
			WorkDir:        filepath.Join(workspace, renderDirName),
			Commentary:     text,
		})
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, cur, err)
	}

	r.enter(ctx, cur, StageUploading)
	var videoURL string
	err = r.withTimeout(ctx, r.cfg.Timeouts.Upload, func(ctx context.Context) error {
		var err error
		videoURL, err = r.deps.Publisher.Upload(ctx, output, handle)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, cur, err)
	}

	cur.stage = StageCompleted
	if err := r.deps.Recorder.Complete(ctx, cur.id, videoURL); err != nil {
		cur.log.WithError(err).Warn("Failed to record run completion")
	}
	cur.log.WithFields(logrus.Fields{
		"video_url": videoURL,
		"elapsed":   time.Since(start).String(),
	}).Info("Roast completed")

	return &Result{RunID: cur.id, Handle: handle, VideoURL: videoURL, Duration: duration}, nil
}

// picture downloads the profile picture into the workspace, or returns the
// default image when there is none.
func (r *Roaster) picture(ctx context.Context, cur *run, pictureURL, workspace string) string {
	if pictureURL == "" {
		return r.cfg.DefaultProfileImage
	}
	dest := filepath.Join(workspace, pictureFileName)
	if err := r.downloadPicture(ctx, r.deps.HTTPClient, pictureURL, dest); err != nil {
		cur.log.WithError(err).Warn("Using default profile image")
		return r.cfg.DefaultProfileImage
	}
	return dest
}

func (r *Roaster) enter(ctx context.Context, cur *run, stage Stage) {
	cur.stage = stage
	cur.log.WithField("stage", stage).Debug("Entering stage")
	if err := r.deps.Recorder.Stage(ctx, cur.id, string(stage)); err != nil {
		cur.log.WithError(err).Warn("Failed to record stage")
	}
}

// fail records the failure and returns err classified.
func (r *Roaster) fail(ctx context.Context, cur *run, err error) error {
	if _, ok := apperr.As(err); !ok {
		err = apperr.New(apperr.KindInternal, fmt.Sprintf("roast failed while %s", cur.stage)).WithCause(err)
	}
	kind := apperr.KindOf(err)

	cur.log.WithError(err).WithFields(logrus.Fields{
		"stage": cur.stage,
		"code":  kind,
	}).Error("Roast failed")

	// The request context may already be done; the record still gets written.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := r.deps.Recorder.Fail(recordCtx, cur.id, string(cur.stage), string(kind), err.Error()); recErr != nil {
		cur.log.WithError(recErr).Warn("Failed to record run failure")
	}
	cur.stage = StageFailed
	return err
}

func (r *Roaster) withTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Package compositor renders the roast video: the base clip, the profile
// picture and one timed caption per spoken word, muxed with the narration.
package compositor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
	"roastreel/models"
)

// TailBuffer is added to the audio duration to leave room for the fade out.
const TailBuffer = 2 * time.Second

const (
	baseVideoName = "base_video.mp4"
	scriptName    = "filter_complex.txt"
	captionsDir   = "captions"
)

// MediaTool probes and renders media. *ffmpeg.Tool implements it.
type MediaTool interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	Run(ctx context.Context, args ...string) error
}

// Config holds the fixed render inputs.
type Config struct {
	BaseVideoURL string
	FontFile     string
}

// RenderRequest describes one render.
type RenderRequest struct {
	AudioPath      string
	ImagePath      string
	TranscriptPath string
	OutputPath     string
	// WorkDir receives the base video and filter files; it is removed if the
	// render fails.
	WorkDir    string
	Commentary string
}

type Compositor struct {
	media      MediaTool
	httpClient *http.Client
	cfg        Config
	logger     *logrus.Logger

	download func(ctx context.Context, httpClient *http.Client, sourceURL, dest string) error
}

func New(media MediaTool, httpClient *http.Client, cfg Config, logger *logrus.Logger) *Compositor {
	return &Compositor{
		media:      media,
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
		download:   DownloadBaseVideo,
	}
}

// Render composes the video described by req and returns its duration.
func (c *Compositor) Render(ctx context.Context, req RenderRequest) (time.Duration, error) {
	total, err := c.render(ctx, req)
	if err != nil {
		if rmErr := os.RemoveAll(req.WorkDir); rmErr != nil {
			c.logger.WithError(rmErr).WithField("dir", req.WorkDir).Warn("Failed to remove render directory")
		}
		if _, ok := apperr.As(err); ok {
			return 0, err
		}
		return 0, apperr.Render("video rendering failed").WithCause(err)
	}
	return total, nil
}

func (c *Compositor) render(ctx context.Context, req RenderRequest) (time.Duration, error) {
	log := c.logger.WithField("output", req.OutputPath)

	if err := os.MkdirAll(filepath.Join(req.WorkDir, captionsDir), 0o750); err != nil {
		return 0, fmt.Errorf("create render directory: %w", err)
	}

	basePath := filepath.Join(req.WorkDir, baseVideoName)
	if err := c.download(ctx, c.httpClient, c.cfg.BaseVideoURL, basePath); err != nil {
		return 0, err
	}
	log.Debug("Base video downloaded")

	audioDuration, err := c.media.ProbeDuration(ctx, req.AudioPath)
	if err != nil {
		return 0, fmt.Errorf("probe audio duration: %w", err)
	}
	total := audioDuration + TailBuffer

	words, err := loadWords(req.TranscriptPath)
	if err != nil {
		return 0, err
	}
	if len(words) == 0 {
		log.Warn("Transcript has no words, spreading commentary over the audio")
		words = FallbackWords(req.Commentary, audioDuration.Seconds())
	}
	captions := PlanCaptions(words)

	graph := buildFilterGraph(captions, filepath.Join(req.WorkDir, captionsDir), c.cfg.FontFile, total.Seconds())
	for path, text := range graph.TextFiles {
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return 0, fmt.Errorf("write caption file: %w", err)
		}
	}
	scriptPath := filepath.Join(req.WorkDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(graph.Script), 0o600); err != nil {
		return 0, fmt.Errorf("write filter script: %w", err)
	}

	args := renderArgs(basePath, req.ImagePath, req.AudioPath, scriptPath, req.OutputPath, total.Seconds())
	if err := c.media.Run(ctx, args...); err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{
		"captions": len(captions),
		"duration": total.String(),
	}).Info("Video rendered")
	return total, nil
}

func loadWords(transcriptPath string) ([]models.TranscriptWord, error) {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	doc, err := models.ParseTranscription(data)
	if err != nil {
		return nil, err
	}
	return doc.Words(), nil
}

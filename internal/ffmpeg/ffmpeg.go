package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FFProbeOutput defines the structure for ffprobe JSON output relevant to duration.
type FFProbeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Tool runs the ffmpeg and ffprobe binaries.
type Tool struct {
	FFmpegPath  string
	FFprobePath string
	logger      *logrus.Logger
}

// New returns a Tool. Empty paths resolve the binaries from PATH.
func New(ffmpegPath, ffprobePath string, logger *logrus.Logger) *Tool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Tool{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, logger: logger}
}

// ProbeDuration uses ffprobe to get the duration of a media file.
func (t *Tool) ProbeDuration(ctx context.Context, filePath string) (time.Duration, error) {
	// ffprobe -v quiet -print_format json -show_format <input_file>
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nStderr: %s", err, stderr.String())
	}
	return ParseProbeDuration(out.Bytes())
}

// ParseProbeDuration reads format.duration from ffprobe JSON output.
func ParseProbeDuration(output []byte) (time.Duration, error) {
	var probe FFProbeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("error unmarshalling ffprobe output: %w\nOutput: %s", err, string(output))
	}

	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("could not retrieve duration from ffprobe output\nOutput: %s", string(output))
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing duration string '%s': %w", probe.Format.Duration, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q in ffprobe output", probe.Format.Duration)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Run executes ffmpeg with args. On failure the tail of stderr is part of the error.
func (t *Tool) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nStderr: %s", err, tail(stderr.String(), 4000))
	}

	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"args":     len(args),
			"duration": time.Since(start).String(),
		}).Debug("ffmpeg finished")
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

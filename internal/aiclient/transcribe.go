package aiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
	"roastreel/models"
)

const defaultTranscriptionModel = "nova-2"

// TranscriptionConfig configures the transcription client.
type TranscriptionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// TranscriptionClient produces word-level timings for an audio file.
type TranscriptionClient struct {
	httpClient *http.Client
	cfg        TranscriptionConfig
	logger     *logrus.Logger
}

func NewTranscriptionClient(httpClient *http.Client, cfg TranscriptionConfig, logger *logrus.Logger) *TranscriptionClient {
	if cfg.Model == "" {
		cfg.Model = defaultTranscriptionModel
	}
	return &TranscriptionClient{httpClient: httpClient, cfg: cfg, logger: logger}
}

// Transcribe uploads the audio at audioPath and writes the JSON response to
// outputPath. Every failure is a TranscriptionError.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioPath, outputPath string) (*models.TranscriptionDocument, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, apperr.Transcription("failed to read audio").WithCause(err)
	}

	params := url.Values{}
	params.Set("model", c.cfg.Model)
	params.Set("smart_format", "true")
	params.Set("language", "en")
	params.Set("punctuate", "true")
	params.Set("diarize", "false")
	params.Set("utterances", "false")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/listen?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, apperr.Transcription("failed to create request").WithCause(err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transcription("transcription request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transcription("failed to read transcription response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Transcription(fmt.Sprintf("transcription API error (%s): %s", resp.Status, strings.TrimSpace(string(body)))).
			With("upstream_status", resp.StatusCode)
	}

	doc, err := models.ParseTranscription(body)
	if err != nil {
		return nil, apperr.Transcription("invalid transcription response").WithCause(err)
	}
	if err := os.WriteFile(outputPath, body, 0o600); err != nil {
		return nil, apperr.Transcription("failed to write transcript").WithCause(err)
	}

	c.logger.WithFields(logrus.Fields{
		"path":       outputPath,
		"words":      len(doc.Words()),
		"request_id": doc.Metadata.RequestID,
	}).Info("Audio transcribed")
	return doc, nil
}

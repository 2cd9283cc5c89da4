package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
)

const (
	speechService      = "TTS API"
	defaultSpeechModel = "eleven_turbo_v2_5"
	defaultSpeechLang  = "en"
	maxErrorBodyLen    = 2048
)

// VoiceSettings are the style parameters sent with every TTS request.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings is the fixed voice style of the roast narrator.
var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
	Style:           0.7,
	UseSpeakerBoost: true,
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// SpeechConfig configures the TTS client.
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// SpeechClient converts text to speech.
type SpeechClient struct {
	httpClient *http.Client
	cfg        SpeechConfig
	logger     *logrus.Logger
}

func NewSpeechClient(httpClient *http.Client, cfg SpeechConfig, logger *logrus.Logger) *SpeechClient {
	if cfg.ModelID == "" {
		cfg.ModelID = defaultSpeechModel
	}
	return &SpeechClient{httpClient: httpClient, cfg: cfg, logger: logger}
}

// Synthesize writes the spoken form of text to outputPath.
func (c *SpeechClient) Synthesize(ctx context.Context, text, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Synthesis("text cannot be empty")
	}

	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		LanguageCode:  defaultSpeechLang,
		VoiceSettings: DefaultVoiceSettings,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Unavailable(speechService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return apperr.Synthesis(fmt.Sprintf("TTS API error (%s): %s", resp.Status, strings.TrimSpace(string(payload)))).
			With("upstream_status", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return apperr.Synthesis("failed to write audio").WithCause(err)
	}
	if written == 0 {
		return apperr.Synthesis("received empty audio data")
	}

	c.logger.WithFields(logrus.Fields{"path": outputPath, "bytes": written}).Info("Speech synthesized")
	return nil
}

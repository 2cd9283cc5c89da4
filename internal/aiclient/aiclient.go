// Package aiclient wraps the generative services the pipeline calls: the
// completion API for commentary, the TTS API and the transcription API.
package aiclient

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"roastreel/models"
)

// Output file names inside a request workspace.
const (
	AudioFileName      = "roast.mp3"
	TranscriptFileName = "transcription.json"
)

// Speech is the result of synthesizing and transcribing commentary.
type Speech struct {
	AudioPath      string
	TranscriptPath string
	Transcript     *models.TranscriptionDocument
}

type speaker interface {
	Synthesize(ctx context.Context, text, outputPath string) error
}

type transcriber interface {
	Transcribe(ctx context.Context, audioPath, outputPath string) (*models.TranscriptionDocument, error)
}

// Synthesizer turns commentary into an audio file plus word timings.
type Synthesizer struct {
	speech     speaker
	transcribe transcriber
	logger     *logrus.Logger
}

func NewSynthesizer(speech *SpeechClient, transcription *TranscriptionClient, logger *logrus.Logger) *Synthesizer {
	return &Synthesizer{speech: speech, transcribe: transcription, logger: logger}
}

// Speak synthesizes text into workDir and immediately transcribes the result.
func (s *Synthesizer) Speak(ctx context.Context, text, workDir string) (*Speech, error) {
	audioPath := filepath.Join(workDir, AudioFileName)
	if err := s.speech.Synthesize(ctx, text, audioPath); err != nil {
		return nil, err
	}

	transcriptPath := filepath.Join(workDir, TranscriptFileName)
	doc, err := s.transcribe.Transcribe(ctx, audioPath, transcriptPath)
	if err != nil {
		return nil, err
	}

	return &Speech{
		AudioPath:      audioPath,
		TranscriptPath: transcriptPath,
		Transcript:     doc,
	}, nil
}

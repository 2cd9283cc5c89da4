package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TranscriptWord is one spoken word with its offsets in seconds.
type TranscriptWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns how long the word is on screen.
func (w TranscriptWord) Duration() float64 {
	return w.End - w.Start
}

// TranscriptionDocument mirrors the parts of the transcription API response we
// read. The document is written to disk as received.
type TranscriptionDocument struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string              `json:"transcript"`
				Confidence float64             `json:"confidence"`
				Words      []TranscriptionWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscriptionWord is a word entry as returned by the transcription API.
type TranscriptionWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

// ParseTranscription decodes a transcription document.
func ParseTranscription(data []byte) (*TranscriptionDocument, error) {
	var doc TranscriptionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode transcription document: %w", err)
	}
	return &doc, nil
}

// Words returns the ordered word timings of the first channel's first
// alternative. Punctuated text is preferred. Offsets are clamped so that
// 0 <= start <= end, and empty words are dropped.
func (d *TranscriptionDocument) Words() []TranscriptWord {
	if d == nil || len(d.Results.Channels) == 0 || len(d.Results.Channels[0].Alternatives) == 0 {
		return []TranscriptWord{}
	}

	raw := d.Results.Channels[0].Alternatives[0].Words
	words := make([]TranscriptWord, 0, len(raw))
	for _, w := range raw {
		text := strings.TrimSpace(w.PunctuatedWord)
		if text == "" {
			text = strings.TrimSpace(w.Word)
		}
		if text == "" {
			continue
		}

		start := w.Start
		if start < 0 {
			start = 0
		}
		end := w.End
		if end < start {
			end = start
		}
		words = append(words, TranscriptWord{Text: text, Start: start, End: end})
	}
	return words
}

// Transcript returns the plain transcript text of the first alternative.
func (d *TranscriptionDocument) Transcript() string {
	if d == nil || len(d.Results.Channels) == 0 || len(d.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return d.Results.Channels[0].Alternatives[0].Transcript
}

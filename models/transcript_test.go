package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roastreel/models"
)

const sampleTranscription = `{
  "metadata": {"request_id": "req-1", "duration": 3.2},
  "results": {
    "channels": [{
      "alternatives": [{
        "transcript": "Oh look everyone, it's Jane.",
        "confidence": 0.98,
        "words": [
          {"word": "oh", "punctuated_word": "Oh", "start": 0.08, "end": 0.24, "confidence": 0.99},
          {"word": "look", "punctuated_word": "look", "start": 0.24, "end": 0.48, "confidence": 0.99},
          {"word": "everyone", "punctuated_word": "everyone,", "start": 0.48, "end": 0.96, "confidence": 0.97},
          {"word": "it's", "start": 1.1, "end": 1.3, "confidence": 0.95},
          {"word": "", "punctuated_word": "", "start": 1.3, "end": 1.4},
          {"word": "jane", "punctuated_word": "Jane.", "start": 1.4, "end": 1.2, "confidence": 0.9}
        ]
      }]
    }]
  }
}`

func TestTranscriptionWords(t *testing.T) {
	t.Parallel()

	doc, err := models.ParseTranscription([]byte(sampleTranscription))
	require.NoError(t, err)

	words := doc.Words()
	require.Len(t, words, 5)

	assert.Equal(t, "Oh", words[0].Text)
	assert.Equal(t, "everyone,", words[2].Text)
	assert.Equal(t, "it's", words[3].Text, "falls back to the bare word")
	assert.Equal(t, "Jane.", words[4].Text)
	assert.InDelta(t, 1.4, words[4].End, 1e-9, "end is clamped to start")

	for _, w := range words {
		assert.LessOrEqual(t, w.Start, w.End)
	}

	assert.Equal(t, "Oh look everyone, it's Jane.", doc.Transcript())
	assert.Equal(t, "req-1", doc.Metadata.RequestID)
}

func TestTranscriptionWords_EmptyDocument(t *testing.T) {
	t.Parallel()

	doc, err := models.ParseTranscription([]byte(`{"results":{"channels":[]}}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Words())
	assert.Empty(t, doc.Words())
	assert.Empty(t, doc.Transcript())

	_, err = models.ParseTranscription([]byte(`not json`))
	require.Error(t, err)
}

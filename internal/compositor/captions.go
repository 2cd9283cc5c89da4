package compositor

import (
	"strings"
	"unicode/utf8"

	"roastreel/models"
)

// Palette is cycled through by word index.
var Palette = [...]string{
	"#FF1E1E", "#FF9C1E", "#FFE61E",
	"#1EFF1E", "#1E8FFF", "#961EFF",
}

const (
	minFontSize    = 60
	borderNormal   = 4
	borderEmphasis = 5
	emphasisMarks  = "!?."
	borderColor    = "black"
)

// Caption is one word drawn on screen during [Start, End).
type Caption struct {
	Text     string
	Start    float64
	End      float64
	Color    string
	FontSize int
	Emphasis bool
}

// BorderWidth returns the outline width for the caption.
func (c Caption) BorderWidth() int {
	if c.Emphasis {
		return borderEmphasis
	}
	return borderNormal
}

// PlanCaptions styles each transcript word. The last word and any word with
// terminal punctuation are emphasized.
func PlanCaptions(words []models.TranscriptWord) []Caption {
	captions := make([]Caption, 0, len(words))
	for i, w := range words {
		captions = append(captions, Caption{
			Text:     w.Text,
			Start:    w.Start,
			End:      w.End,
			Color:    Palette[i%len(Palette)],
			FontSize: FontSize(w.Text),
			Emphasis: IsEmphasis(i, len(words), w.Text),
		})
	}
	return captions
}

// FontSize shrinks with word length and never drops below 60.
func FontSize(word string) int {
	size := minFontSize + (10-utf8.RuneCountInString(word))*4
	if size < minFontSize {
		return minFontSize
	}
	return size
}

func IsEmphasis(index, total int, word string) bool {
	return index == total-1 || strings.ContainsAny(word, emphasisMarks)
}

// FallbackWords spreads the words of text evenly over duration seconds. It is
// used when the transcript has no word timings.
func FallbackWords(text string, duration float64) []models.TranscriptWord {
	fields := strings.Fields(text)
	if len(fields) == 0 || duration <= 0 {
		return []models.TranscriptWord{}
	}

	step := duration / float64(len(fields))
	words := make([]models.TranscriptWord, len(fields))
	for i, f := range fields {
		words[i] = models.TranscriptWord{
			Text:  f,
			Start: float64(i) * step,
			End:   float64(i+1) * step,
		}
	}
	return words
}

package compositor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roastreel/internal/apperr"
	"roastreel/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func words(texts ...string) []models.TranscriptWord {
	out := make([]models.TranscriptWord, len(texts))
	for i, text := range texts {
		out[i] = models.TranscriptWord{Text: text, Start: float64(i) * 0.5, End: float64(i)*0.5 + 0.4}
	}
	return out
}

func TestPlanCaptions_Emphasis(t *testing.T) {
	t.Parallel()

	captions := PlanCaptions(words("Oh", "look", "everyone,", "it's", "Jane.", "Wow!", "Really?", "done"))
	want := []bool{false, false, false, false, true, true, true, true}
	require.Len(t, captions, len(want))
	for i, c := range captions {
		assert.Equal(t, want[i], c.Emphasis, c.Text)
		if c.Emphasis {
			assert.Equal(t, 5, c.BorderWidth())
		} else {
			assert.Equal(t, 4, c.BorderWidth())
		}
	}

	single := PlanCaptions(words("alone"))
	assert.True(t, single[0].Emphasis, "the last word is always emphasized")
	assert.Empty(t, PlanCaptions(nil))
}

func TestPlanCaptions_ColorCycle(t *testing.T) {
	t.Parallel()

	texts := make([]string, 14)
	for i := range texts {
		texts[i] = "w"
	}
	for i, c := range PlanCaptions(words(texts...)) {
		assert.Equal(t, Palette[i%6], c.Color, i)
	}
}

func TestFontSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 96, FontSize("a"))
	assert.Equal(t, 60, FontSize("abcdefghij"))
	assert.Equal(t, 60, FontSize("extraordinarily"))
	assert.Equal(t, 84, FontSize("café"), "counts characters, not bytes")
}

func TestFallbackWords(t *testing.T) {
	t.Parallel()

	got := FallbackWords("Oh look  everyone\nJane.", 4)
	require.Len(t, got, 4)
	assert.Equal(t, "everyone", got[2].Text)
	assert.InDelta(t, 2.0, got[2].Start, 1e-9)
	assert.InDelta(t, 4.0, got[3].End, 1e-9)

	assert.Empty(t, FallbackWords("   ", 4))
	assert.Empty(t, FallbackWords("words", 0))
}

func TestBuildFilterGraph(t *testing.T) {
	t.Parallel()

	captions := PlanCaptions(words("Oh", "Jane."))
	graph := buildFilterGraph(captions, "/work/captions", "/fonts/komika.ttf", 7.5)

	assert.Len(t, graph.TextFiles, 2)
	assert.Equal(t, "Jane.", graph.TextFiles[filepath.Join("/work/captions", "word_0001.txt")])
	assert.Contains(t, graph.Script, "[1:v]scale=200:-1[img]")
	assert.Contains(t, graph.Script, "overlay=50:50[v0]")
	assert.Contains(t, graph.Script, "fontcolor=0xFF1E1E:borderw=4")
	assert.Contains(t, graph.Script, "fontcolor=0xFF9C1E:borderw=5")
	assert.Contains(t, graph.Script, "enable='gte(t,0.500)*lt(t,0.900)'[v2]")
	assert.Contains(t, graph.Script, "fade=t=out:st=6.000:d=1.5")
	assert.Contains(t, graph.Script, "fontfile='/fonts/komika.ttf'")
	assert.True(t, strings.HasSuffix(graph.Script, "[2:a]apad[aout]"))
}

func TestQuote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `'/a/b c'`, quote("/a/b c"))
	assert.Equal(t, `'it'\''s'`, quote("it's"))
}

func TestRenderArgs_Duration(t *testing.T) {
	t.Parallel()

	args := renderArgs("base.mp4", "img.jpg", "roast.mp3", "script.txt", "out.mp4", 12.25)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-stream_loop -1 -i base.mp4")
	assert.Contains(t, joined, "-t 12.250")
	assert.Contains(t, joined, "-r 24")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-c:a aac")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestDirectDownloadURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://drive.google.com/uc?export=download&id=abc_123",
		DirectDownloadURL("https://drive.google.com/file/d/abc_123/view?usp=sharing"))
	assert.Equal(t, "https://cdn.example.com/base.mp4", DirectDownloadURL("https://cdn.example.com/base.mp4"))
}

func TestDownloadBaseVideo_FollowsConfirmPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/video", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body>
			<form id="download-form" action="/confirm" method="get">
				<input type="hidden" name="id" value="abc">
				<input type="hidden" name="confirm" value="t">
				<input type="submit" value="Download anyway">
			</form></body></html>`)
	})
	mux.HandleFunc("/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "t" || r.URL.Query().Get("id") != "abc" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = io.WriteString(w, "mp4-bytes")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "base.mp4")
	require.NoError(t, DownloadBaseVideo(context.Background(), server.Client(), server.URL+"/video", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(data))
}

func TestDownloadBaseVideo_AnchorAndFailures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/anchor", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<a id="uc-download-link" href="/file?x=1">Download</a>`)
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "video")
	})
	mux.HandleFunc("/nolink", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<p>quota exceeded</p>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, DownloadBaseVideo(context.Background(), server.Client(), server.URL+"/anchor", filepath.Join(dir, "a.mp4")))
	require.Error(t, DownloadBaseVideo(context.Background(), server.Client(), server.URL+"/nolink", filepath.Join(dir, "b.mp4")))
	require.Error(t, DownloadBaseVideo(context.Background(), server.Client(), server.URL+"/missing", filepath.Join(dir, "c.mp4")))
}

type fakeMedia struct {
	duration time.Duration
	runErr   error
	args     []string
	script   string
}

func (f *fakeMedia) ProbeDuration(context.Context, string) (time.Duration, error) {
	return f.duration, nil
}

func (f *fakeMedia) Run(_ context.Context, args ...string) error {
	f.args = args
	for i, a := range args {
		if a == "-filter_complex_script" {
			data, _ := os.ReadFile(args[i+1])
			f.script = string(data)
		}
	}
	if f.runErr != nil {
		return f.runErr
	}
	return os.WriteFile(args[len(args)-1], []byte("rendered"), 0o600)
}

func newTestCompositor(media *fakeMedia, downloadErr error) *Compositor {
	c := New(media, http.DefaultClient, Config{BaseVideoURL: "https://example.com/base.mp4"}, quietLogger())
	c.download = func(_ context.Context, _ *http.Client, _, dest string) error {
		if downloadErr != nil {
			return downloadErr
		}
		return os.WriteFile(dest, []byte("base"), 0o600)
	}
	return c
}

const twoWordTranscript = `{"results":{"channels":[{"alternatives":[{"words":[
	{"word":"oh","punctuated_word":"Oh","start":0.1,"end":0.4},
	{"word":"jane","punctuated_word":"Jane.","start":0.5,"end":0.9}]}]}]}}`

func writeRenderInputs(t *testing.T, transcript string) RenderRequest {
	t.Helper()
	root := t.TempDir()
	req := RenderRequest{
		AudioPath:      filepath.Join(root, "roast.mp3"),
		ImagePath:      filepath.Join(root, "profile.jpg"),
		TranscriptPath: filepath.Join(root, "transcription.json"),
		OutputPath:     filepath.Join(root, "final_roast.mp4"),
		WorkDir:        filepath.Join(root, "render"),
		Commentary:     "Oh look everyone",
	}
	require.NoError(t, os.WriteFile(req.AudioPath, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(req.ImagePath, []byte("i"), 0o600))
	require.NoError(t, os.WriteFile(req.TranscriptPath, []byte(transcript), 0o600))
	return req
}

func TestRender_DurationIsAudioPlusTail(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{duration: 10500 * time.Millisecond}
	req := writeRenderInputs(t, twoWordTranscript)

	total, err := newTestCompositor(media, nil).Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Millisecond, total)
	assert.Contains(t, strings.Join(media.args, " "), "-t 12.500")
	assert.FileExists(t, req.OutputPath)
	assert.Contains(t, media.script, "borderw=5")

	caption, err := os.ReadFile(filepath.Join(req.WorkDir, captionsDir, "word_0001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Jane.", string(caption))
}

func TestRender_FallbackCaptions(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{duration: 3 * time.Second}
	req := writeRenderInputs(t, `{"results":{"channels":[]}}`)

	_, err := newTestCompositor(media, nil).Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(media.script, "drawtext="))
}

func TestRender_FailureRemovesWorkDir(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{duration: time.Second, runErr: errors.New("encoder exploded")}
	req := writeRenderInputs(t, twoWordTranscript)

	_, err := newTestCompositor(media, nil).Render(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRender))
	assert.NoDirExists(t, req.WorkDir)
	assert.FileExists(t, req.AudioPath, "inputs outside the work dir are left alone")

	req = writeRenderInputs(t, twoWordTranscript)
	_, err = newTestCompositor(&fakeMedia{duration: time.Second}, errors.New("drive down")).Render(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.KindRender))
	assert.NoDirExists(t, req.WorkDir)
}

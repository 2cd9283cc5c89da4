package compositor

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	imageWidth   = 200
	imageX       = 50
	imageY       = 50
	fadeDuration = 1.5
	frameRate    = 24
)

// filterGraph is the -filter_complex script for one render plus the caption
// text files it references.
type filterGraph struct {
	Script    string
	TextFiles map[string]string
}

// buildFilterGraph composes base video (input 0), profile image (input 1) and
// audio (input 2). Each caption reads its text from its own file so no word
// needs escaping inside the graph.
func buildFilterGraph(captions []Caption, captionDir, fontFile string, total float64) filterGraph {
	graph := filterGraph{TextFiles: make(map[string]string, len(captions))}

	var b strings.Builder
	fmt.Fprintf(&b, "[1:v]scale=%d:-1[img];\n", imageWidth)
	fmt.Fprintf(&b, "[0:v][img]overlay=%d:%d[v0];\n", imageX, imageY)

	for i, c := range captions {
		textFile := filepath.Join(captionDir, fmt.Sprintf("word_%04d.txt", i))
		graph.TextFiles[textFile] = c.Text

		fmt.Fprintf(&b, "[v%d]drawtext=", i)
		if fontFile != "" {
			fmt.Fprintf(&b, "fontfile=%s:", quote(fontFile))
		}
		fmt.Fprintf(&b,
			"textfile=%s:expansion=none:fontsize=%d:fontcolor=%s:borderw=%d:bordercolor=%s:x=(w-text_w)/2:y=(h-text_h)/2:enable='gte(t,%.3f)*lt(t,%.3f)'[v%d];\n",
			quote(textFile), c.FontSize, ffmpegColor(c.Color), c.BorderWidth(), borderColor, c.Start, c.End, i+1)
	}

	fadeOutStart := total - fadeDuration
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	fmt.Fprintf(&b, "[v%d]fade=t=in:st=0:d=%.1f,fade=t=out:st=%.3f:d=%.1f,fps=%d,format=yuv420p[vout];\n",
		len(captions), fadeDuration, fadeOutStart, fadeDuration, frameRate)
	b.WriteString("[2:a]apad[aout]")

	graph.Script = b.String()
	return graph
}

// renderArgs builds the ffmpeg command line. The base video loops so a clip
// shorter than the audio still covers the whole output, and -t fixes the
// output length.
func renderArgs(basePath, imagePath, audioPath, scriptPath, outputPath string, total float64) []string {
	return []string{
		"-y",
		"-stream_loop", "-1", "-i", basePath,
		"-i", imagePath,
		"-i", audioPath,
		"-filter_complex_script", scriptPath,
		"-map", "[vout]",
		"-map", "[aout]",
		"-t", fmt.Sprintf("%.3f", total),
		"-r", fmt.Sprintf("%d", frameRate),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
}

// quote wraps a filter option value in single quotes.
func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func ffmpegColor(hex string) string {
	return "0x" + strings.TrimPrefix(hex, "#")
}

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const thumbnailWidth = 320

// FFmpeg shells out to ffprobe for metadata and ffmpeg for thumbnails.
type FFmpeg struct {
	probePath  string
	ffmpegPath string
	timeout    time.Duration
}

// NewFFmpeg locates the binaries on PATH. It returns Noop when either is
// missing so uploads keep working without media metadata.
func NewFFmpeg(timeout time.Duration) Inspector {
	probePath, err := exec.LookPath("ffprobe")
	if err != nil {
		log.Warn().Msg("ffprobe not found on PATH, media metadata disabled")
		return Noop{}
	}
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Warn().Msg("ffmpeg not found on PATH, thumbnails disabled")
		return Noop{}
	}
	return &FFmpeg{probePath: probePath, ffmpegPath: ffmpegPath, timeout: timeout}
}

func (f *FFmpeg) Inspect(ctx context.Context, mimeType string, content []byte) (*Metadata, error) {
	if !Supported(mimeType) {
		return nil, nil
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	// both tools need a seekable input for most containers
	tmp, err := os.CreateTemp("", "cloudnest-media-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	out, err := f.run(ctx, f.probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		tmp.Name(),
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	meta, err := ParseProbe(out)
	if err != nil {
		return nil, err
	}

	thumb, err := f.thumbnail(ctx, tmp.Name(), strings.HasPrefix(mimeType, "video/"), meta.Duration)
	if err != nil {
		log.Warn().Err(err).Str("mime_type", mimeType).Msg("Thumbnail extraction failed")
	} else {
		meta.Thumbnail = thumb
	}
	return meta, nil
}

func (f *FFmpeg) thumbnail(ctx context.Context, path string, video bool, duration *float64) ([]byte, error) {
	args := []string{"-v", "error"}
	if video {
		args = append(args, "-ss", seekOffset(duration))
	}
	args = append(args,
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", thumbnailWidth),
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)
	out, err := f.run(ctx, f.ffmpegPath, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no thumbnail")
	}
	return out, nil
}

// seekOffset picks a frame one second in, or the first frame for clips
// shorter than that.
func seekOffset(duration *float64) string {
	if duration != nil && *duration > 1 {
		return "1"
	}
	return "0"
}

func (f *FFmpeg) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbe reads ffprobe's JSON output. Dimensions come from the first
// video stream; duration prefers the container value.
func ParseProbe(data []byte) (*Metadata, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &Metadata{}
	var streamDuration string
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width > 0 && s.Height > 0 {
			w, h := s.Width, s.Height
			meta.Width, meta.Height = &w, &h
		}
		streamDuration = s.Duration
		break
	}

	for _, raw := range []string{probe.Format.Duration, streamDuration} {
		if d, ok := parseDuration(raw); ok {
			meta.Duration = &d
			break
		}
	}
	return meta, nil
}

func parseDuration(raw string) (float64, bool) {
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Package media extracts dimensions, duration and a preview thumbnail from
// uploaded images and videos.
package media

import (
	"context"
	"strings"
)

// Metadata holds whatever the inspector could learn. Every field is optional.
type Metadata struct {
	Width     *int
	Height    *int
	Duration  *float64 // seconds
	Thumbnail []byte   // JPEG
}

type Inspector interface {
	// Inspect returns nil metadata for types it does not handle.
	Inspect(ctx context.Context, mimeType string, content []byte) (*Metadata, error)
}

// Supported reports whether the MIME type is an image or video.
func Supported(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

// Noop never returns metadata. Used when ffmpeg is not installed.
type Noop struct{}

func (Noop) Inspect(context.Context, string, []byte) (*Metadata, error) {
	return nil, nil
}

package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const rootSegment = "root"

func folderSegment(folderID *string) string {
	if folderID == nil || *folderID == "" {
		return rootSegment
	}
	return *folderID
}

// ObjectKey builds a collision-free key of the form
// uploads/{userID}/{folderID|root}/{uuid}-{slug}{ext}.
func ObjectKey(userID string, folderID *string, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := slug.Make(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("uploads/%s/%s/%s-%s%s", userID, folderSegment(folderID), uuid.NewString(), base, ext)
}

func ThumbnailKey(userID string, folderID *string) string {
	return fmt.Sprintf("uploads/%s/%s/thumb-%s.jpg", userID, folderSegment(folderID), uuid.NewString())
}

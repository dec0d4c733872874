package models

import (
	"strings"
	"time"
)

type File struct {
	ID           string    `bson:"_id" json:"id"`
	OriginalName string    `bson:"original_name" json:"original_name"`
	StorageKey   string    `bson:"storage_key" json:"-"`
	ThumbnailKey *string   `bson:"thumbnail_key" json:"-"`
	FileSize     int64     `bson:"file_size" json:"file_size"`
	MimeType     string    `bson:"mime_type" json:"mime_type"`
	Width        *int      `bson:"width,omitempty" json:"width,omitempty"`
	Height       *int      `bson:"height,omitempty" json:"height,omitempty"`
	Duration     *float64  `bson:"duration,omitempty" json:"duration,omitempty"` // seconds
	OwnerID      string    `bson:"owner_id" json:"-"`
	FolderID     *string   `bson:"folder_id" json:"folder_id"` // nil = root
	UploadedAt   time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// BlobKeys returns every object-storage key backing the file.
func (f *File) BlobKeys() []string {
	keys := []string{f.StorageKey}
	if f.ThumbnailKey != nil && *f.ThumbnailKey != "" {
		keys = append(keys, *f.ThumbnailKey)
	}
	return keys
}

func (f *File) HasThumbnail() bool {
	return f.ThumbnailKey != nil && *f.ThumbnailKey != ""
}

func (f *File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

func (f *File) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// FileView is the presentation record for a file inside a listing.
type FileView struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	Duration     *float64  `json:"duration,omitempty"`
	FolderID     *string   `json:"folder_id"`
	HasThumbnail bool      `json:"has_thumbnail"`
	UploadedAt   time.Time `json:"uploaded_at"`
	ShareToken   string    `json:"share_token,omitempty"`
}

func NewFileView(f *File) FileView {
	return FileView{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		FileSize:     f.FileSize,
		Width:        f.Width,
		Height:       f.Height,
		Duration:     f.Duration,
		FolderID:     f.FolderID,
		HasThumbnail: f.HasThumbnail(),
		UploadedAt:   f.UploadedAt,
	}
}

package models

import "strings"

type SortKey string

const (
	SortByName SortKey = "name"
	SortByType SortKey = "type"
	SortByDate SortKey = "date"
	SortBySize SortKey = "size"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField is a logical column; each store maps it to its own column name.
type SortField string

const (
	FieldName         SortField = "name"
	FieldUpdatedAt    SortField = "updated_at"
	FieldOriginalName SortField = "original_name"
	FieldMimeType     SortField = "mime_type"
	FieldUploadedAt   SortField = "uploaded_at"
	FieldFileSize     SortField = "file_size"
)

type Sort struct {
	Key       SortKey
	Direction SortDirection
}

// ParseSort never fails: an unknown key yields name ascending regardless of
// direction, an unknown direction yields ascending.
func ParseSort(key, direction string) Sort {
	k := SortKey(strings.ToLower(strings.TrimSpace(key)))
	switch k {
	case SortByName, SortByType, SortByDate, SortBySize:
	default:
		return Sort{Key: SortByName, Direction: SortAsc}
	}

	d := SortDirection(strings.ToLower(strings.TrimSpace(direction)))
	if d != SortDesc {
		d = SortAsc
	}
	return Sort{Key: k, Direction: d}
}

func (s Sort) Descending() bool {
	return s.Direction == SortDesc
}

// FolderField maps the key onto a folder column. Folders have no type or
// size of their own, so those keys order by name.
func (s Sort) FolderField() SortField {
	if s.Key == SortByDate {
		return FieldUpdatedAt
	}
	return FieldName
}

func (s Sort) FileField() SortField {
	switch s.Key {
	case SortByType:
		return FieldMimeType
	case SortByDate:
		return FieldUploadedAt
	case SortBySize:
		return FieldFileSize
	default:
		return FieldOriginalName
	}
}

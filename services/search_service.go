package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"strings"
	"unicode/utf8"
)

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
	maxQueryLength     = 100
)

type SearchResult struct {
	Query   string              `json:"query"`
	Folders []models.FolderView `json:"folders"`
	Files   []models.FileView   `json:"files"`
}

type SearchService struct {
	folders repository.FolderRepository
	files   repository.FileRepository
}

func NewSearchService(store *repository.Store) *SearchService {
	return &SearchService{
		folders: store.Folders,
		files:   store.Files,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

// Search matches folder names and file names of ownerID case-insensitively.
// The query is matched literally; each kind is capped at limit results.
func (s *SearchService) Search(ctx context.Context, ownerID, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	result := &SearchResult{
		Query:   query,
		Folders: []models.FolderView{},
		Files:   []models.FileView{},
	}
	if query == "" {
		return result, nil
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		return nil, BadRequest("search query too long")
	}

	limit = clampLimit(limit)

	folders, err := s.folders.Search(ctx, ownerID, query, limit)
	if err != nil {
		return nil, Internal("failed to search folders", err)
	}
	for i := range folders {
		result.Folders = append(result.Folders, models.NewFolderView(&folders[i]))
	}

	files, err := s.files.Search(ctx, ownerID, query, limit)
	if err != nil {
		return nil, Internal("failed to search files", err)
	}
	for i := range files {
		result.Files = append(result.Files, models.NewFileView(&files[i]))
	}

	return result, nil
}

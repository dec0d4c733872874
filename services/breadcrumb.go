package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog/log"
)

// MaxBreadcrumbDepth bounds the parent walk against corrupt parent chains.
const MaxBreadcrumbDepth = 64

type BreadcrumbResolver struct {
	folders repository.FolderRepository
}

func NewBreadcrumbResolver(folders repository.FolderRepository) *BreadcrumbResolver {
	return &BreadcrumbResolver{folders: folders}
}

// ResolvePath returns the folders from the owner's root down to folderID,
// root first. A nil or empty id is the root itself and yields an empty path.
// A missing or foreign ancestor ends the walk and the path found so far is
// returned.
func (r *BreadcrumbResolver) ResolvePath(ctx context.Context, ownerID string, folderID *string) ([]models.BreadcrumbEntry, error) {
	path := []models.BreadcrumbEntry{}

	current := normalizeID(folderID)
	for depth := 0; current != nil; depth++ {
		if depth >= MaxBreadcrumbDepth {
			log.Warn().
				Str("owner_id", ownerID).
				Str("folder_id", *folderID).
				Msg("Breadcrumb depth limit reached")
			break
		}

		folder, err := r.folders.FindByID(ctx, ownerID, *current)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return nil, Internal("failed to resolve folder path", err)
		}

		path = append(path, models.BreadcrumbEntry{ID: folder.ID, Name: folder.Name})
		current = folder.ParentID
	}

	slices.Reverse(path)
	return path, nil
}

// normalizeID maps the empty string to nil so both mean root.
func normalizeID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

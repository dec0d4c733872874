package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"errors"
)

// Listing holds the immediate children of one folder.
type Listing struct {
	Folders []models.FolderView `json:"folders"`
	Files   []models.FileView   `json:"files"`
}

type ListingService struct {
	folders repository.FolderRepository
	files   repository.FileRepository
	shares  *ShareService
}

func NewListingService(store *repository.Store, shares *ShareService) *ListingService {
	return &ListingService{
		folders: store.Folders,
		files:   store.Files,
		shares:  shares,
	}
}

// ListChildren lists the folders and files directly inside folderID (root
// when nil or empty). Unknown sort input falls back to name ascending.
func (s *ListingService) ListChildren(ctx context.Context, ownerID string, folderID *string, sortKey, sortDirection string) (*Listing, error) {
	folderID = normalizeID(folderID)
	if folderID != nil {
		if _, err := s.folders.FindByID(ctx, ownerID, *folderID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NotFound("folder not found")
			}
			return nil, Internal("failed to load folder", err)
		}
	}

	order := models.ParseSort(sortKey, sortDirection)

	folders, err := s.folders.ListChildren(ctx, ownerID, folderID, order)
	if err != nil {
		return nil, Internal("failed to list folders", err)
	}
	files, err := s.files.ListChildren(ctx, ownerID, folderID, order)
	if err != nil {
		return nil, Internal("failed to list files", err)
	}

	listing := &Listing{
		Folders: make([]models.FolderView, 0, len(folders)),
		Files:   make([]models.FileView, 0, len(files)),
	}

	folderIDs := make([]string, 0, len(folders))
	for i := range folders {
		view := models.NewFolderView(&folders[i])
		view.ChildFileCount, view.ChildFolderCount, err = s.folders.CountChildren(ctx, ownerID, folders[i].ID)
		if err != nil {
			return nil, Internal("failed to count folder contents", err)
		}
		listing.Folders = append(listing.Folders, view)
		folderIDs = append(folderIDs, folders[i].ID)
	}

	fileIDs := make([]string, 0, len(files))
	for i := range files {
		listing.Files = append(listing.Files, models.NewFileView(&files[i]))
		fileIDs = append(fileIDs, files[i].ID)
	}

	folderTokens, err := s.shares.TokensFor(ctx, models.TargetFolder, folderIDs)
	if err != nil {
		return nil, err
	}
	for i := range listing.Folders {
		listing.Folders[i].ShareToken = folderTokens[listing.Folders[i].ID]
	}

	fileTokens, err := s.shares.TokensFor(ctx, models.TargetFile, fileIDs)
	if err != nil {
		return nil, err
	}
	for i := range listing.Files {
		listing.Files[i].ShareToken = fileTokens[listing.Files[i].ID]
	}

	return listing, nil
}

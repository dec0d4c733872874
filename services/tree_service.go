package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"cloudnest/storage"
	"cloudnest/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TreeService owns the folder/file hierarchy: creation, rename, move and
// delete, all scoped to the calling owner.
type TreeService struct {
	folders repository.FolderRepository
	files   repository.FileRepository
	objects storage.ObjectStorage
	quota   *QuotaService
	shares  *ShareService
	now     func() time.Time
}

func NewTreeService(store *repository.Store, objects storage.ObjectStorage, quota *QuotaService, shares *ShareService) *TreeService {
	return &TreeService{
		folders: store.Folders,
		files:   store.Files,
		objects: objects,
		quota:   quota,
		shares:  shares,
		now:     time.Now,
	}
}

func (s *TreeService) loadFolder(ctx context.Context, ownerID, folderID string, what string) (*models.Folder, error) {
	folder, err := s.folders.FindByID(ctx, ownerID, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound(what + " not found")
		}
		return nil, Internal("failed to load folder", err)
	}
	return folder, nil
}

func (s *TreeService) loadFile(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	file, err := s.files.FindByID(ctx, ownerID, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("file not found")
		}
		return nil, Internal("failed to load file", err)
	}
	return file, nil
}

// CreateFolder creates a folder under parentID, or at the owner's root when
// parentID is nil or empty.
func (s *TreeService) CreateFolder(ctx context.Context, ownerID, name string, parentID *string) (*models.FolderView, error) {
	if err := utils.ValidateFolderName(name); err != nil {
		return nil, BadRequest(err.Error())
	}

	parentID = normalizeID(parentID)
	if parentID != nil {
		if _, err := s.loadFolder(ctx, ownerID, *parentID, "parent folder"); err != nil {
			return nil, err
		}
	}

	now := s.now()
	folder := &models.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.folders.Create(ctx, folder); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, Conflict(fmt.Sprintf("folder with name '%s' already exists", name))
		case errors.Is(err, repository.ErrNotFound):
			return nil, NotFound("parent folder not found")
		default:
			return nil, Internal("failed to create folder", err)
		}
	}

	view := models.NewFolderView(folder)
	return &view, nil
}

// GetFolder returns the folder with its child counts and share token.
func (s *TreeService) GetFolder(ctx context.Context, ownerID, folderID string) (*models.FolderView, error) {
	folder, err := s.loadFolder(ctx, ownerID, folderID, "folder")
	if err != nil {
		return nil, err
	}

	view := models.NewFolderView(folder)
	view.ChildFileCount, view.ChildFolderCount, err = s.folders.CountChildren(ctx, ownerID, folderID)
	if err != nil {
		return nil, Internal("failed to count folder contents", err)
	}
	if view.ShareToken, err = s.shares.TokenFor(ctx, models.TargetFolder, folderID); err != nil {
		return nil, err
	}
	return &view, nil
}

// RenameOrMoveFolder renames the folder when newName is non-empty and moves
// it when newParentID is non-nil; a pointer to "" moves it to root.
func (s *TreeService) RenameOrMoveFolder(ctx context.Context, ownerID, folderID, newName string, newParentID *string) (*models.FolderView, error) {
	folder, err := s.loadFolder(ctx, ownerID, folderID, "folder")
	if err != nil {
		return nil, err
	}

	if newName != "" && newName != folder.Name {
		if err := utils.ValidateFolderName(newName); err != nil {
			return nil, BadRequest(err.Error())
		}
		folder.Name = newName
	}

	if newParentID != nil {
		target := normalizeID(newParentID)
		if target != nil {
			if *target == folder.ID {
				return nil, BadRequest("a folder cannot be moved into itself")
			}
			if _, err := s.loadFolder(ctx, ownerID, *target, "parent folder"); err != nil {
				return nil, err
			}
		}
		folder.ParentID = target
	}

	// the store checks ancestry together with the write
	folder.UpdatedAt = s.now()
	if err := s.folders.Move(ctx, folder); err != nil {
		switch {
		case errors.Is(err, repository.ErrCycle):
			return nil, BadRequest("a folder cannot be moved into one of its subfolders")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, Conflict(fmt.Sprintf("folder with name '%s' already exists", folder.Name))
		case errors.Is(err, repository.ErrNotFound):
			return nil, NotFound("folder not found")
		default:
			return nil, Internal("failed to update folder", err)
		}
	}

	return s.GetFolder(ctx, ownerID, folder.ID)
}

// DeleteFolder removes an empty folder and returns the deleted record. A
// folder with any child file or subfolder is left untouched and NotEmpty is
// returned.
func (s *TreeService) DeleteFolder(ctx context.Context, ownerID, folderID string) (*models.Folder, error) {
	folder, err := s.loadFolder(ctx, ownerID, folderID, "folder")
	if err != nil {
		return nil, err
	}

	if err := s.folders.DeleteIfEmpty(ctx, ownerID, folderID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotEmpty):
			return nil, NotEmpty("folder is not empty")
		case errors.Is(err, repository.ErrNotFound):
			return nil, NotFound("folder not found")
		default:
			return nil, Internal("failed to delete folder", err)
		}
	}

	s.shares.forget(ctx, models.TargetFolder, folderID)
	return folder, nil
}

func (s *TreeService) GetFile(ctx context.Context, ownerID, fileID string) (*models.FileView, error) {
	file, err := s.loadFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	view := models.NewFileView(file)
	if view.ShareToken, err = s.shares.TokenFor(ctx, models.TargetFile, fileID); err != nil {
		return nil, err
	}
	return &view, nil
}

// RenameOrMoveFile follows the same conventions as RenameOrMoveFolder.
func (s *TreeService) RenameOrMoveFile(ctx context.Context, ownerID, fileID, newName string, newFolderID *string) (*models.FileView, error) {
	file, err := s.loadFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	if newName != "" && newName != file.OriginalName {
		if err := utils.ValidateFileName(newName); err != nil {
			return nil, BadRequest(err.Error())
		}
		file.OriginalName = newName
	}

	if newFolderID != nil {
		target := normalizeID(newFolderID)
		if target != nil {
			if _, err := s.loadFolder(ctx, ownerID, *target, "folder"); err != nil {
				return nil, err
			}
		}
		file.FolderID = target
	}

	if err := s.files.Update(ctx, file); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("file not found")
		}
		return nil, Internal("failed to update file", err)
	}

	return s.GetFile(ctx, ownerID, fileID)
}

// DeleteFile removes the file's blobs first; if that fails the record is
// kept so it never points at missing data. After the record is gone, share
// link and quota cleanup are best effort.
func (s *TreeService) DeleteFile(ctx context.Context, ownerID, fileID string) (*models.File, error) {
	file, err := s.loadFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	if err := s.objects.Remove(ctx, file.BlobKeys()...); err != nil {
		return nil, Internal("failed to delete file from storage", err)
	}

	if err := s.files.Delete(ctx, ownerID, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("file not found")
		}
		return nil, Internal("failed to delete file record", err)
	}

	s.shares.forget(ctx, models.TargetFile, fileID)

	if _, err := s.quota.Commit(ctx, ownerID, -file.FileSize); err != nil {
		log.Warn().Err(err).
			Str("user_id", ownerID).
			Str("file_id", fileID).
			Int64("size", file.FileSize).
			Msg("File deleted but storage usage was not decremented")
	}

	return file, nil
}

// EnsureFolderPath walks segments below baseID, creating any folder that
// does not exist yet, and returns the id of the deepest one.
func (s *TreeService) EnsureFolderPath(ctx context.Context, ownerID string, baseID *string, segments []string) (*string, error) {
	current := normalizeID(baseID)
	if current != nil {
		if _, err := s.loadFolder(ctx, ownerID, *current, "folder"); err != nil {
			return nil, err
		}
	}

	for _, name := range segments {
		if err := utils.ValidateFolderName(name); err != nil {
			return nil, BadRequest(err.Error())
		}

		existing, err := s.folders.FindByName(ctx, ownerID, current, name)
		if err == nil {
			current = &existing.ID
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, Internal("failed to look up folder", err)
		}

		created, err := s.CreateFolder(ctx, ownerID, name, current)
		if IsKind(err, KindConflict) {
			// created concurrently by a sibling upload
			existing, err = s.folders.FindByName(ctx, ownerID, current, name)
			if err != nil {
				return nil, Internal(fmt.Sprintf("failed to create folder '%s'", name), err)
			}
			current = &existing.ID
			continue
		}
		if err != nil {
			return nil, err
		}
		current = &created.ID
	}
	return current, nil
}

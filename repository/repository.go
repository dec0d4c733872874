package repository

import (
	"cloudnest/models"
	"context"
	"time"
)

// UserRepository persists accounts and their storage counters.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListIDs(ctx context.Context) ([]string, error)

	// AddStorageUsed applies delta atomically, clamping the counter at zero,
	// and returns the new value.
	AddStorageUsed(ctx context.Context, id string, delta int64) (int64, error)
	SetStorageUsed(ctx context.Context, id string, used int64) error
	// RecomputeStorageUsed sets the counter to the sum of the user's file
	// sizes and returns it.
	RecomputeStorageUsed(ctx context.Context, id string) (int64, error)
}

// FolderRepository scopes every lookup by owner; a folder owned by someone
// else is reported as ErrNotFound.
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	FindByID(ctx context.Context, ownerID, id string) (*models.Folder, error)
	FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error)
	// Move persists name, parent and updated_at. It fails with ErrCycle when
	// the new parent is the folder itself or one of its descendants, checked
	// atomically with the write, and with ErrNotFound when the parent is gone.
	Move(ctx context.Context, folder *models.Folder) error
	// DeleteIfEmpty removes the folder unless it has a child file or folder,
	// in which case ErrNotEmpty is returned and nothing changes.
	DeleteIfEmpty(ctx context.Context, ownerID, id string) error
	ListChildren(ctx context.Context, ownerID string, parentID *string, sort models.Sort) ([]models.Folder, error)
	CountChildren(ctx context.Context, ownerID, id string) (files int64, folders int64, err error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]models.Folder, error)
}

type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	FindByID(ctx context.Context, ownerID, id string) (*models.File, error)
	// Update persists original name and folder.
	Update(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, ownerID, id string) error
	ListChildren(ctx context.Context, ownerID string, folderID *string, sort models.Sort) ([]models.File, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]models.File, error)
}

type ShareRepository interface {
	// Create fails with ErrDuplicate when the token or the target is taken.
	Create(ctx context.Context, link *models.ShareLink) error
	FindByToken(ctx context.Context, token string) (*models.ShareLink, error)
	FindByTarget(ctx context.Context, targetType models.TargetType, targetID string) (*models.ShareLink, error)
	// ListByOwner returns the owner's links, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error)
	// ConsumeAccess increments the access counter only if the link is still
	// usable at now, in a single conditional update. ErrNotFound means no
	// usable link matched.
	ConsumeAccess(ctx context.Context, token string, now time.Time) (*models.ShareLink, error)
	TokensFor(ctx context.Context, targetType models.TargetType, targetIDs []string) (map[string]string, error)
	DeleteByTarget(ctx context.Context, targetType models.TargetType, targetID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users   UserRepository
	Folders FolderRepository
	Files   FileRepository
	Shares  ShareRepository

	close func(ctx context.Context) error
}

func NewStore(users UserRepository, folders FolderRepository, files FileRepository, shares ShareRepository, closeFn func(ctx context.Context) error) *Store {
	return &Store{
		Users:   users,
		Folders: folders,
		Files:   files,
		Shares:  shares,
		close:   closeFn,
	}
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

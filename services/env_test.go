package services

import (
	"cloudnest/media"
	"cloudnest/models"
	"cloudnest/repository"
	"cloudnest/repository/memory"
	"cloudnest/storage"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	meta  *media.Metadata
	err   error
	calls int
}

func (f *fakeInspector) Inspect(context.Context, string, []byte) (*media.Metadata, error) {
	f.calls++
	return f.meta, f.err
}

type testEnv struct {
	store     *repository.Store
	objects   *storage.Memory
	inspector *fakeInspector
	quota     *QuotaService
	shares    *ShareService
	crumbs    *BreadcrumbResolver
	tree      *TreeService
	listing   *ListingService
	uploads   *UploadService
	search    *SearchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	objects := storage.NewMemory()
	inspector := &fakeInspector{}

	quota := NewQuotaService(store.Users)
	shares := NewShareService(store)
	crumbs := NewBreadcrumbResolver(store.Folders)
	tree := NewTreeService(store, objects, quota, shares)

	return &testEnv{
		store:     store,
		objects:   objects,
		inspector: inspector,
		quota:     quota,
		shares:    shares,
		crumbs:    crumbs,
		tree:      tree,
		listing:   NewListingService(store, shares),
		uploads:   NewUploadService(store, tree, quota, objects, inspector, 1<<20),
		search:    NewSearchService(store),
	}
}

func (e *testEnv) newUser(t *testing.T, limit int64) string {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		Name:         "Test User",
		Role:         models.RoleUser,
		StorageLimit: limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Users.Create(context.Background(), user))
	return user.ID
}

func (e *testEnv) mkdir(t *testing.T, ownerID, name string, parentID *string) *models.FolderView {
	t.Helper()

	folder, err := e.tree.CreateFolder(context.Background(), ownerID, name, parentID)
	require.NoError(t, err)
	return folder
}

func (e *testEnv) upload(t *testing.T, ownerID string, folderID *string, name, content string) *models.FileView {
	t.Helper()

	file, err := e.uploads.Upload(context.Background(), UploadRequest{
		OwnerID:  ownerID,
		FolderID: folderID,
		Filename: name,
		Content:  strings.NewReader(content),
		Size:     int64(len(content)),
	})
	require.NoError(t, err)
	return file
}

func (e *testEnv) used(t *testing.T, ownerID string) int64 {
	t.Helper()

	status, err := e.quota.Status(context.Background(), ownerID)
	require.NoError(t, err)
	return status.Used
}

func ptr[T any](v T) *T {
	return &v
}

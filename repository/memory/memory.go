package memory

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store keeps every record in maps guarded by one mutex. It backs the test
// suites and DB_DRIVER=memory for local development.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	folders map[string]*models.Folder
	files   map[string]*models.File
	shares  map[string]*models.ShareLink // keyed by token
}

func New() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		folders: make(map[string]*models.Folder),
		files:   make(map[string]*models.File),
		shares:  make(map[string]*models.ShareLink),
	}
}

// NewStore wires a fresh in-memory backend into a repository.Store.
func NewStore() *repository.Store {
	m := New()
	return repository.NewStore(UserRepo{m}, FolderRepo{m}, FileRepo{m}, ShareRepo{m}, nil)
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ========== Users ==========

type UserRepo struct{ m *Store }

func (r UserRepo) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.m.users[user.ID] = &cp
	return nil
}

func (r UserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r UserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r UserRepo) ListIDs(_ context.Context) ([]string, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	ids := make([]string, 0, len(r.m.users))
	for id := range r.m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r UserRepo) AddStorageUsed(_ context.Context, id string, delta int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.StorageUsed = max(u.StorageUsed+delta, 0)
	u.UpdatedAt = time.Now()
	return u.StorageUsed, nil
}

func (r UserRepo) SetStorageUsed(_ context.Context, id string, used int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.StorageUsed = max(used, 0)
	u.UpdatedAt = time.Now()
	return nil
}

func (r UserRepo) RecomputeStorageUsed(_ context.Context, id string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	var total int64
	for _, f := range r.m.files {
		if f.OwnerID == id {
			total += f.FileSize
		}
	}
	u.StorageUsed = total
	u.UpdatedAt = time.Now()
	return total, nil
}

// ========== Folders ==========

type FolderRepo struct{ m *Store }

// siblingTaken must be called with the lock held.
func (m *Store) siblingTaken(ownerID string, parentID *string, name, exceptID string) bool {
	for _, f := range m.folders {
		if f.ID != exceptID && f.OwnerID == ownerID && f.Name == name && sameParent(f.ParentID, parentID) {
			return true
		}
	}
	return false
}

func (r FolderRepo) Create(_ context.Context, folder *models.Folder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.folders[folder.ID]; ok {
		return repository.ErrDuplicate
	}
	if r.m.siblingTaken(folder.OwnerID, folder.ParentID, folder.Name, "") {
		return repository.ErrDuplicate
	}
	cp := *folder
	cp.ParentID = cloneStr(folder.ParentID)
	r.m.folders[folder.ID] = &cp
	return nil
}

func (r FolderRepo) FindByID(_ context.Context, ownerID, id string) (*models.Folder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	f, ok := r.m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	cp := *f
	cp.ParentID = cloneStr(f.ParentID)
	return &cp, nil
}

func (r FolderRepo) FindByName(_ context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, f := range r.m.folders {
		if f.OwnerID == ownerID && f.Name == name && sameParent(f.ParentID, parentID) {
			cp := *f
			cp.ParentID = cloneStr(f.ParentID)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// maxAncestry bounds the parent walk in Move; a longer chain can only be a
// corrupt tree.
const maxAncestry = 1024

func (r FolderRepo) Move(_ context.Context, folder *models.Folder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.folders[folder.ID]
	if !ok || f.OwnerID != folder.OwnerID {
		return repository.ErrNotFound
	}
	if err := r.m.checkAncestry(folder.OwnerID, folder.ID, folder.ParentID); err != nil {
		return err
	}
	if r.m.siblingTaken(folder.OwnerID, folder.ParentID, folder.Name, folder.ID) {
		return repository.ErrDuplicate
	}
	f.Name = folder.Name
	f.ParentID = cloneStr(folder.ParentID)
	f.UpdatedAt = folder.UpdatedAt
	return nil
}

// checkAncestry walks up from parentID and fails if it reaches id.
func (m *Store) checkAncestry(ownerID, id string, parentID *string) error {
	current := parentID
	for depth := 0; current != nil; depth++ {
		if *current == id || depth >= maxAncestry {
			return repository.ErrCycle
		}
		parent, ok := m.folders[*current]
		if !ok || parent.OwnerID != ownerID {
			return repository.ErrNotFound
		}
		current = parent.ParentID
	}
	return nil
}

func (r FolderRepo) DeleteIfEmpty(_ context.Context, ownerID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	files, folders := r.m.countChildren(id)
	if files > 0 || folders > 0 {
		return repository.ErrNotEmpty
	}
	delete(r.m.folders, id)
	return nil
}

func (m *Store) countChildren(id string) (files, folders int64) {
	for _, f := range m.folders {
		if f.ParentID != nil && *f.ParentID == id {
			folders++
		}
	}
	for _, f := range m.files {
		if f.FolderID != nil && *f.FolderID == id {
			files++
		}
	}
	return files, folders
}

func (r FolderRepo) CountChildren(_ context.Context, ownerID, id string) (int64, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	f, ok := r.m.folders[id]
	if !ok || f.OwnerID != ownerID {
		return 0, 0, repository.ErrNotFound
	}
	files, folders := r.m.countChildren(id)
	return files, folders, nil
}

func (r FolderRepo) ListChildren(_ context.Context, ownerID string, parentID *string, s models.Sort) ([]models.Folder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Folder{}
	for _, f := range r.m.folders {
		if f.OwnerID == ownerID && sameParent(f.ParentID, parentID) {
			cp := *f
			cp.ParentID = cloneStr(f.ParentID)
			out = append(out, cp)
		}
	}

	field := s.FolderField()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		if field == models.FieldUpdatedAt {
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		} else {
			c = strings.Compare(a.Name, b.Name)
		}
		if c == 0 {
			return a.ID < b.ID
		}
		if s.Descending() {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

func (r FolderRepo) Search(_ context.Context, ownerID, query string, limit int) ([]models.Folder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	q := strings.ToLower(query)
	out := []models.Folder{}
	for _, f := range r.m.folders {
		if f.OwnerID == ownerID && strings.Contains(strings.ToLower(f.Name), q) {
			cp := *f
			cp.ParentID = cloneStr(f.ParentID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ========== Files ==========

type FileRepo struct{ m *Store }

func cloneFile(f *models.File) models.File {
	cp := *f
	cp.FolderID = cloneStr(f.FolderID)
	cp.ThumbnailKey = cloneStr(f.ThumbnailKey)
	return cp
}

func (r FileRepo) Create(_ context.Context, file *models.File) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.files[file.ID]; ok {
		return repository.ErrDuplicate
	}
	if file.FolderID != nil {
		parent, ok := r.m.folders[*file.FolderID]
		if !ok || parent.OwnerID != file.OwnerID {
			return repository.ErrNotFound
		}
	}
	cp := cloneFile(file)
	r.m.files[file.ID] = &cp
	return nil
}

func (r FileRepo) FindByID(_ context.Context, ownerID, id string) (*models.File, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	f, ok := r.m.files[id]
	if !ok || f.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	cp := cloneFile(f)
	return &cp, nil
}

func (r FileRepo) Update(_ context.Context, file *models.File) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.files[file.ID]
	if !ok || f.OwnerID != file.OwnerID {
		return repository.ErrNotFound
	}
	if file.FolderID != nil {
		parent, ok := r.m.folders[*file.FolderID]
		if !ok || parent.OwnerID != file.OwnerID {
			return repository.ErrNotFound
		}
	}
	f.OriginalName = file.OriginalName
	f.FolderID = cloneStr(file.FolderID)
	return nil
}

func (r FileRepo) Delete(_ context.Context, ownerID, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.files[id]
	if !ok || f.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.m.files, id)
	return nil
}

func compareFiles(a, b models.File, field models.SortField) int {
	switch field {
	case models.FieldMimeType:
		return strings.Compare(a.MimeType, b.MimeType)
	case models.FieldUploadedAt:
		return a.UploadedAt.Compare(b.UploadedAt)
	case models.FieldFileSize:
		switch {
		case a.FileSize < b.FileSize:
			return -1
		case a.FileSize > b.FileSize:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.OriginalName, b.OriginalName)
	}
}

func (r FileRepo) ListChildren(_ context.Context, ownerID string, folderID *string, s models.Sort) ([]models.File, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.File{}
	for _, f := range r.m.files {
		if f.OwnerID == ownerID && sameParent(f.FolderID, folderID) {
			out = append(out, cloneFile(f))
		}
	}

	field := s.FileField()
	sort.Slice(out, func(i, j int) bool {
		c := compareFiles(out[i], out[j], field)
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if s.Descending() {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

func (r FileRepo) Search(_ context.Context, ownerID, query string, limit int) ([]models.File, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	q := strings.ToLower(query)
	out := []models.File{}
	for _, f := range r.m.files {
		if f.OwnerID == ownerID && strings.Contains(strings.ToLower(f.OriginalName), q) {
			out = append(out, cloneFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OriginalName == out[j].OriginalName {
			return out[i].ID < out[j].ID
		}
		return out[i].OriginalName < out[j].OriginalName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ========== Share links ==========

type ShareRepo struct{ m *Store }

func cloneShare(s *models.ShareLink) *models.ShareLink {
	cp := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		cp.ExpiresAt = &t
	}
	if s.MaxAccess != nil {
		n := *s.MaxAccess
		cp.MaxAccess = &n
	}
	return &cp
}

func (r ShareRepo) Create(_ context.Context, link *models.ShareLink) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.shares[link.Token]; ok {
		return repository.ErrDuplicate
	}
	for _, s := range r.m.shares {
		if s.TargetType == link.TargetType && s.TargetID == link.TargetID {
			return repository.ErrDuplicate
		}
	}
	r.m.shares[link.Token] = cloneShare(link)
	return nil
}

func (r ShareRepo) FindByToken(_ context.Context, token string) (*models.ShareLink, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	s, ok := r.m.shares[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneShare(s), nil
}

func (r ShareRepo) FindByTarget(_ context.Context, targetType models.TargetType, targetID string) (*models.ShareLink, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, s := range r.m.shares {
		if s.TargetType == targetType && s.TargetID == targetID {
			return cloneShare(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r ShareRepo) ListByOwner(_ context.Context, ownerID string) ([]models.ShareLink, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.ShareLink{}
	for _, s := range r.m.shares {
		if s.OwnerID == ownerID {
			out = append(out, *cloneShare(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Token < out[j].Token
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r ShareRepo) ConsumeAccess(_ context.Context, token string, now time.Time) (*models.ShareLink, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.shares[token]
	if !ok || !s.Usable(now) {
		return nil, repository.ErrNotFound
	}
	s.AccessCount++
	return cloneShare(s), nil
}

func (r ShareRepo) TokensFor(_ context.Context, targetType models.TargetType, targetIDs []string) (map[string]string, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string]string)
	for _, s := range r.m.shares {
		if s.TargetType != targetType {
			continue
		}
		if _, ok := wanted[s.TargetID]; ok {
			out[s.TargetID] = s.Token
		}
	}
	return out, nil
}

func (r ShareRepo) DeleteByTarget(_ context.Context, targetType models.TargetType, targetID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for token, s := range r.m.shares {
		if s.TargetType == targetType && s.TargetID == targetID {
			delete(r.m.shares, token)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r ShareRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for token, s := range r.m.shares {
		if s.Expired(now) {
			delete(r.m.shares, token)
			n++
		}
	}
	return n, nil
}

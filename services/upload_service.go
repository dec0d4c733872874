package services

import (
	"bytes"
	"cloudnest/media"
	"cloudnest/models"
	"cloudnest/repository"
	"cloudnest/storage"
	"cloudnest/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultMimeType = "application/octet-stream"

// UploadRequest describes one incoming file. RelativePath, when set, is the
// path the client reported for a folder upload ("docs/2024/a.txt"); its
// directories are created below FolderID.
type UploadRequest struct {
	OwnerID      string
	FolderID     *string
	Filename     string
	RelativePath string
	Content      io.Reader
	Size         int64
}

type UploadService struct {
	files       repository.FileRepository
	tree        *TreeService
	quota       *QuotaService
	objects     storage.ObjectStorage
	inspector   media.Inspector
	maxFileSize int64
	now         func() time.Time
}

func NewUploadService(store *repository.Store, tree *TreeService, quota *QuotaService, objects storage.ObjectStorage, inspector media.Inspector, maxFileSize int64) *UploadService {
	if inspector == nil {
		inspector = media.Noop{}
	}
	return &UploadService{
		files:       store.Files,
		tree:        tree,
		quota:       quota,
		objects:     objects,
		inspector:   inspector,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}
}

func quotaExceeded(decision QuotaDecision) *Error {
	e := LimitReached(fmt.Sprintf("upload would exceed storage limit (%d bytes remaining)", decision.Remaining))
	remaining := decision.Remaining
	e.Remaining = &remaining
	return e
}

// detectMimeType sniffs the content and falls back to the extension when
// the bytes are not conclusive.
func detectMimeType(filename string, data []byte) string {
	detected := mimetype.Detect(data).String()
	if base, _, err := mime.ParseMediaType(detected); err == nil {
		detected = base
	}
	if detected != "" && detected != defaultMimeType {
		return detected
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if base, _, err := mime.ParseMediaType(byExt); err == nil {
			return base
		}
	}
	return defaultMimeType
}

// sniffLen is how much of the body is read ahead for type detection.
const sniffLen = 3072

var errSizeMismatch = errors.New("content length does not match the declared size")

// sizedReader fails once the body runs past size or ends short of it, so
// storage never keeps content that disagrees with the reserved quota.
type sizedReader struct {
	r    io.Reader
	size int64
	n    int64
}

func (s *sizedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	if s.n > s.size {
		return n, errSizeMismatch
	}
	if err == io.EOF && s.n != s.size {
		return n, errSizeMismatch
	}
	return n, err
}

func (s *UploadService) checkSize(filename string, size int64) error {
	if size < 0 {
		return BadRequest(fmt.Sprintf("%s: file size cannot be negative", filename))
	}
	if err := utils.ValidateFileSize(size, s.maxFileSize); err != nil {
		return TooLarge(fmt.Sprintf("%s: %v", filename, err))
	}
	return nil
}

// Upload stores one file: quota check, blob write, media metadata, record
// insert, then the quota commit. The body is streamed into storage; only
// media that the inspector needs is held in memory.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*models.FileView, error) {
	if err := utils.ValidateFileName(req.Filename); err != nil {
		return nil, BadRequest(err.Error())
	}
	if err := s.checkSize(req.Filename, req.Size); err != nil {
		return nil, err
	}
	segments, err := utils.SplitRelativePath(req.RelativePath)
	if err != nil {
		return nil, BadRequest(err.Error())
	}

	folderID := normalizeID(req.FolderID)
	if folderID != nil {
		if _, err := s.tree.loadFolder(ctx, req.OwnerID, *folderID, "folder"); err != nil {
			return nil, err
		}
	}

	decision, err := s.quota.Reserve(ctx, req.OwnerID, req.Size)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, quotaExceeded(decision)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(req.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, BadRequest(fmt.Sprintf("failed to read %s: %v", req.Filename, err))
	}
	head = head[:n]
	mimeType := detectMimeType(req.Filename, head)

	body := &sizedReader{r: io.MultiReader(bytes.NewReader(head), req.Content), size: req.Size}
	var content io.Reader = body
	var data []byte
	if media.Supported(mimeType) {
		if data, err = io.ReadAll(body); err != nil {
			return nil, s.readError(req, err)
		}
		content = bytes.NewReader(data)
	}

	if len(segments) > 0 {
		if folderID, err = s.tree.EnsureFolderPath(ctx, req.OwnerID, folderID, segments); err != nil {
			return nil, err
		}
	}

	file := &models.File{
		ID:           uuid.NewString(),
		OriginalName: req.Filename,
		StorageKey:   storage.ObjectKey(req.OwnerID, folderID, req.Filename),
		FileSize:     req.Size,
		MimeType:     mimeType,
		OwnerID:      req.OwnerID,
		FolderID:     folderID,
		UploadedAt:   s.now(),
	}

	if err := s.objects.Put(ctx, file.StorageKey, content, req.Size, mimeType); err != nil {
		if errors.Is(err, errSizeMismatch) {
			return nil, BadRequest(fmt.Sprintf("%s: %v", req.Filename, errSizeMismatch))
		}
		return nil, Internal(fmt.Sprintf("failed to upload %s", req.Filename), err)
	}
	if body.n != req.Size {
		s.discardBlobs(ctx, file)
		return nil, BadRequest(fmt.Sprintf("%s: %v", req.Filename, errSizeMismatch))
	}

	s.attachMedia(ctx, file, data)

	if err := s.files.Create(ctx, file); err != nil {
		s.discardBlobs(ctx, file)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("folder not found")
		}
		return nil, Internal(fmt.Sprintf("failed to save file metadata for %s", req.Filename), err)
	}

	if _, err := s.quota.Commit(ctx, req.OwnerID, req.Size); err != nil {
		log.Warn().Err(err).
			Str("user_id", req.OwnerID).
			Str("file_id", file.ID).
			Int64("size", req.Size).
			Msg("File stored but storage usage was not incremented")
	}

	view := models.NewFileView(file)
	return &view, nil
}

func (s *UploadService) readError(req UploadRequest, err error) error {
	if errors.Is(err, errSizeMismatch) {
		return BadRequest(fmt.Sprintf("%s: %v", req.Filename, errSizeMismatch))
	}
	return BadRequest(fmt.Sprintf("failed to read %s: %v", req.Filename, err))
}

// attachMedia fills in dimensions, duration and thumbnail. Inspector or
// thumbnail upload failures leave the file without that metadata.
func (s *UploadService) attachMedia(ctx context.Context, file *models.File, data []byte) {
	if !media.Supported(file.MimeType) {
		return
	}

	meta, err := s.inspector.Inspect(ctx, file.MimeType, data)
	if err != nil {
		log.Warn().Err(err).Str("file_id", file.ID).Str("mime_type", file.MimeType).Msg("Media inspection failed")
		return
	}
	if meta == nil {
		return
	}

	file.Width, file.Height, file.Duration = meta.Width, meta.Height, meta.Duration

	if len(meta.Thumbnail) == 0 {
		return
	}
	key := storage.ThumbnailKey(file.OwnerID, file.FolderID)
	if err := s.objects.Put(ctx, key, bytes.NewReader(meta.Thumbnail), int64(len(meta.Thumbnail)), "image/jpeg"); err != nil {
		log.Warn().Err(err).Str("file_id", file.ID).Msg("Thumbnail upload failed")
		return
	}
	file.ThumbnailKey = &key
}

func (s *UploadService) discardBlobs(ctx context.Context, file *models.File) {
	if err := s.objects.Remove(ctx, file.BlobKeys()...); err != nil {
		log.Warn().Err(err).Str("storage_key", file.StorageKey).Msg("Failed to clean up orphaned upload")
	}
}

// UploadMany uploads a batch. The whole batch is checked against the quota
// up front; if any file fails, the files already stored by this call are
// deleted again.
func (s *UploadService) UploadMany(ctx context.Context, ownerID string, reqs []UploadRequest) ([]models.FileView, error) {
	if len(reqs) == 0 {
		return nil, BadRequest("no files to upload")
	}

	var total int64
	for _, req := range reqs {
		if err := s.checkSize(req.Filename, req.Size); err != nil {
			return nil, err
		}
		total += req.Size
	}

	decision, err := s.quota.Reserve(ctx, ownerID, total)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, quotaExceeded(decision)
	}

	uploaded := make([]models.FileView, 0, len(reqs))
	for _, req := range reqs {
		req.OwnerID = ownerID
		view, err := s.Upload(ctx, req)
		if err != nil {
			s.rollback(ctx, ownerID, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, *view)
	}
	return uploaded, nil
}

func (s *UploadService) rollback(ctx context.Context, ownerID string, uploaded []models.FileView) {
	for _, f := range uploaded {
		if _, err := s.tree.DeleteFile(ctx, ownerID, f.ID); err != nil {
			log.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to roll back partial upload")
		}
	}
}

// Open returns the file record and a reader over its content. The caller
// closes the reader.
func (s *UploadService) Open(ctx context.Context, ownerID, fileID string) (*models.File, io.ReadCloser, error) {
	file, err := s.tree.loadFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.objects.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, NotFound("file content not found")
		}
		return nil, nil, Internal("failed to read file from storage", err)
	}
	return file, rc, nil
}

func (s *UploadService) OpenThumbnail(ctx context.Context, ownerID, fileID string) (io.ReadCloser, error) {
	file, err := s.tree.loadFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if !file.HasThumbnail() {
		return nil, NotFound("file has no thumbnail")
	}

	rc, err := s.objects.Get(ctx, *file.ThumbnailKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, NotFound("thumbnail not found")
		}
		return nil, Internal("failed to read thumbnail from storage", err)
	}
	return rc, nil
}

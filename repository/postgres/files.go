package postgres

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FileRepo struct {
	pool *pgxpool.Pool
}

const fileColumns = `id, original_name, storage_key, thumbnail_key, file_size, mime_type,
	width, height, duration, owner_id, folder_id, uploaded_at`

var fileOrder = map[models.SortField]string{
	models.FieldOriginalName: "original_name",
	models.FieldMimeType:     "mime_type",
	models.FieldUploadedAt:   "uploaded_at",
	models.FieldFileSize:     "file_size",
}

func scanFile(row pgx.Row) (models.File, error) {
	var f models.File
	err := row.Scan(&f.ID, &f.OriginalName, &f.StorageKey, &f.ThumbnailKey, &f.FileSize, &f.MimeType,
		&f.Width, &f.Height, &f.Duration, &f.OwnerID, &f.FolderID, &f.UploadedAt)
	return f, err
}

func collectFiles(rows pgx.Rows) ([]models.File, error) {
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *FileRepo) Create(ctx context.Context, file *models.File) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		file.ID, file.OriginalName, file.StorageKey, file.ThumbnailKey, file.FileSize, file.MimeType,
		file.Width, file.Height, file.Duration, file.OwnerID, file.FolderID, file.UploadedAt)
	if err != nil {
		err = translate(err)
		if errors.Is(err, repository.ErrNotEmpty) {
			return repository.ErrNotFound
		}
	}
	return err
}

func (r *FileRepo) FindByID(ctx context.Context, ownerID, id string) (*models.File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *FileRepo) Update(ctx context.Context, file *models.File) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET original_name = $3, folder_id = $4 WHERE id = $1 AND owner_id = $2`,
		file.ID, file.OwnerID, file.OriginalName, file.FolderID)
	if err != nil {
		err = translate(err)
		if errors.Is(err, repository.ErrNotEmpty) {
			return repository.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FileRepo) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FileRepo) ListChildren(ctx context.Context, ownerID string, folderID *string, s models.Sort) ([]models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files
		WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2::text
		ORDER BY %s %s, id ASC`, fileColumns, fileOrder[s.FileField()], direction(s.Descending()))

	rows, err := r.pool.Query(ctx, query, ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return collectFiles(rows)
}

func (r *FileRepo) Search(ctx context.Context, ownerID, query string, limit int) ([]models.File, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+fileColumns+` FROM files
		WHERE owner_id = $1 AND original_name ILIKE $2 ESCAPE '\'
		ORDER BY original_name ASC, id ASC
		LIMIT $3`, ownerID, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return collectFiles(rows)
}

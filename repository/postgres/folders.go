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

type FolderRepo struct {
	pool *pgxpool.Pool
}

const folderColumns = `id, name, parent_id, owner_id, created_at, updated_at`

var folderOrder = map[models.SortField]string{
	models.FieldName:      "name",
	models.FieldUpdatedAt: "updated_at",
}

func scanFolder(row pgx.Row) (models.Folder, error) {
	var f models.Folder
	err := row.Scan(&f.ID, &f.Name, &f.ParentID, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func collectFolders(rows pgx.Rows) ([]models.Folder, error) {
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (r *FolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO folders (`+folderColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		folder.ID, folder.Name, folder.ParentID, folder.OwnerID, folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		err = translate(err)
		// a dangling parent surfaces as a foreign key violation
		if errors.Is(err, repository.ErrNotEmpty) {
			return repository.ErrNotFound
		}
	}
	return err
}

func (r *FolderRepo) FindByID(ctx context.Context, ownerID, id string) (*models.Folder, error) {
	f, err := scanFolder(r.pool.QueryRow(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *FolderRepo) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	f, err := scanFolder(r.pool.QueryRow(ctx, `SELECT `+folderColumns+` FROM folders
		WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2::text AND name = $3`, ownerID, parentID, name))
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// Move runs in one transaction holding a per-owner advisory lock, so two
// moves of the same owner cannot both pass the ancestry check.
func (r *FolderRepo) Move(ctx context.Context, folder *models.Folder) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, folder.OwnerID); err != nil {
			return fmt.Errorf("failed to lock folder tree: %w", err)
		}

		if folder.ParentID != nil {
			var found, cycle bool
			err := tx.QueryRow(ctx, `WITH RECURSIVE ancestors(id, parent_id) AS (
					SELECT id, parent_id FROM folders WHERE id = $1 AND owner_id = $2
					UNION
					SELECT f.id, f.parent_id FROM folders f JOIN ancestors a ON f.id = a.parent_id
				)
				SELECT EXISTS (SELECT 1 FROM ancestors), EXISTS (SELECT 1 FROM ancestors WHERE id = $3)`,
				*folder.ParentID, folder.OwnerID, folder.ID).Scan(&found, &cycle)
			if err != nil {
				return fmt.Errorf("failed to check folder ancestry: %w", err)
			}
			if !found {
				return repository.ErrNotFound
			}
			if cycle {
				return repository.ErrCycle
			}
		}

		tag, err := tx.Exec(ctx, `UPDATE folders SET name = $3, parent_id = $4, updated_at = $5
			WHERE id = $1 AND owner_id = $2`,
			folder.ID, folder.OwnerID, folder.Name, folder.ParentID, folder.UpdatedAt)
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
	})
}

// DeleteIfEmpty relies on the RESTRICT foreign keys from child folders and
// files: a folder with children cannot be deleted.
func (r *FolderRepo) DeleteIfEmpty(ctx context.Context, ownerID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FolderRepo) CountChildren(ctx context.Context, ownerID, id string) (int64, int64, error) {
	var files, folders int64
	err := r.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM files WHERE folder_id = f.id),
			(SELECT COUNT(*) FROM folders WHERE parent_id = f.id)
		FROM folders f WHERE f.id = $1 AND f.owner_id = $2`, id, ownerID).Scan(&files, &folders)
	if err != nil {
		return 0, 0, translate(err)
	}
	return files, folders, nil
}

func (r *FolderRepo) ListChildren(ctx context.Context, ownerID string, parentID *string, s models.Sort) ([]models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM folders
		WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2::text
		ORDER BY %s %s, id ASC`, folderColumns, folderOrder[s.FolderField()], direction(s.Descending()))

	rows, err := r.pool.Query(ctx, query, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return collectFolders(rows)
}

func (r *FolderRepo) Search(ctx context.Context, ownerID, query string, limit int) ([]models.Folder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+folderColumns+` FROM folders
		WHERE owner_id = $1 AND name ILIKE $2 ESCAPE '\'
		ORDER BY name ASC, id ASC
		LIMIT $3`, ownerID, likePattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search folders: %w", err)
	}
	return collectFolders(rows)
}

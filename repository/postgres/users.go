package postgres

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `id, email, name, password_hash, role, storage_used, storage_limit, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.StorageUsed, &u.StorageLimit, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.StorageUsed, user.StorageLimit, user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *UserRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *UserRepo) AddStorageUsed(ctx context.Context, id string, delta int64) (int64, error) {
	var used int64
	err := r.pool.QueryRow(ctx, `UPDATE users
		SET storage_used = GREATEST(storage_used + $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING storage_used`, id, delta).Scan(&used)
	if err != nil {
		return 0, translate(err)
	}
	return used, nil
}

func (r *UserRepo) SetStorageUsed(ctx context.Context, id string, used int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET storage_used = GREATEST($2, 0), updated_at = NOW() WHERE id = $1`, id, used)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecomputeStorageUsed sums and stores in one statement. An upload whose
// file row is committed but whose counter increment is not yet applied is
// still counted twice until the next run.
func (r *UserRepo) RecomputeStorageUsed(ctx context.Context, id string) (int64, error) {
	var used int64
	err := r.pool.QueryRow(ctx, `UPDATE users
		SET storage_used = (SELECT COALESCE(SUM(file_size), 0)::BIGINT FROM files WHERE owner_id = $1), updated_at = NOW()
		WHERE id = $1
		RETURNING storage_used`, id).Scan(&used)
	if err != nil {
		return 0, translate(err)
	}
	return used, nil
}

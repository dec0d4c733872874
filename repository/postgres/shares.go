package postgres

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ShareRepo struct {
	pool *pgxpool.Pool
}

const shareColumns = `token, owner_id, target_type, target_id, expires_at, max_access, access_count, created_at`

func scanShare(row pgx.Row) (*models.ShareLink, error) {
	var s models.ShareLink
	err := row.Scan(&s.Token, &s.OwnerID, &s.TargetType, &s.TargetID,
		&s.ExpiresAt, &s.MaxAccess, &s.AccessCount, &s.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *ShareRepo) Create(ctx context.Context, link *models.ShareLink) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO share_links (`+shareColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		link.Token, link.OwnerID, link.TargetType, link.TargetID,
		link.ExpiresAt, link.MaxAccess, link.AccessCount, link.CreatedAt)
	return translate(err)
}

func (r *ShareRepo) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	return scanShare(r.pool.QueryRow(ctx, `SELECT `+shareColumns+` FROM share_links WHERE token = $1`, token))
}

func (r *ShareRepo) FindByTarget(ctx context.Context, targetType models.TargetType, targetID string) (*models.ShareLink, error) {
	return scanShare(r.pool.QueryRow(ctx, `SELECT `+shareColumns+` FROM share_links
		WHERE target_type = $1 AND target_id = $2`, targetType, targetID))
}

func (r *ShareRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.ShareLink, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shareColumns+` FROM share_links
		WHERE owner_id = $1
		ORDER BY created_at DESC, token ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	links := []models.ShareLink{}
	for rows.Next() {
		link, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

func (r *ShareRepo) ConsumeAccess(ctx context.Context, token string, now time.Time) (*models.ShareLink, error) {
	return scanShare(r.pool.QueryRow(ctx, `UPDATE share_links
		SET access_count = access_count + 1
		WHERE token = $1
			AND (expires_at IS NULL OR expires_at > $2)
			AND (max_access IS NULL OR access_count < max_access)
		RETURNING `+shareColumns, token, now))
}

func (r *ShareRepo) TokensFor(ctx context.Context, targetType models.TargetType, targetIDs []string) (map[string]string, error) {
	tokens := make(map[string]string)
	if len(targetIDs) == 0 {
		return tokens, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT target_id, token FROM share_links
		WHERE target_type = $1 AND target_id = ANY($2)`, targetType, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up share links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var targetID, token string
		if err := rows.Scan(&targetID, &token); err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		tokens[targetID] = token
	}
	return tokens, rows.Err()
}

func (r *ShareRepo) DeleteByTarget(ctx context.Context, targetType models.TargetType, targetID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM share_links WHERE target_type = $1 AND target_id = $2`, targetType, targetID)
	if err != nil {
		return fmt.Errorf("failed to delete share link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ShareRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM share_links WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired share links: %w", err)
	}
	return tag.RowsAffected(), nil
}

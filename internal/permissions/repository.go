package permissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shul-site/backend/internal/models"
)

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// Repository handles permission grant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a permissions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetGrant returns the grant with compound id userId_sectionId.
func (r *Repository) GetGrant(ctx context.Context, id string) (*models.PermissionGrant, error) {
	const q = `SELECT id, user_id, content_section_id, can_edit, granted_by, granted_at
		FROM permission_grants WHERE id = $1`
	var g models.PermissionGrant
	err := r.pool.QueryRow(ctx, q, id).Scan(&g.ID, &g.UserID, &g.ContentSectionID, &g.CanEdit, &g.GrantedBy, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListByUser returns every grant for a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PermissionGrant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, content_section_id, can_edit, granted_by, granted_at
		FROM permission_grants WHERE user_id = $1 ORDER BY content_section_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PermissionGrant
	for rows.Next() {
		var g models.PermissionGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.ContentSectionID, &g.CanEdit, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// Upsert inserts or refreshes a grant (one per user and section).
func (r *Repository) Upsert(ctx context.Context, g *models.PermissionGrant) error {
	const q = `INSERT INTO permission_grants (id, user_id, content_section_id, can_edit, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET can_edit = EXCLUDED.can_edit, granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at`
	_, err := r.pool.Exec(ctx, q, g.ID, g.UserID, g.ContentSectionID, g.CanEdit, g.GrantedBy, g.GrantedAt)
	return upsertError(err)
}

// upsertError maps a grant pointing at a missing user onto ErrUserNotFound.
func upsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrUserNotFound
	}
	return err
}

// Delete removes a grant; deleting a missing grant is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM permission_grants WHERE id = $1`, id)
	return err
}

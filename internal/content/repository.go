// Package content serves admin-editable page sections.
package content

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shul-site/backend/internal/models"
)

// ErrNotFound is returned when a section does not exist.
var ErrNotFound = errors.New("content section not found")

// Store is the section persistence used by the handler.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.ContentSection, error)
	GetByKey(ctx context.Context, key string) (*models.ContentSection, error)
	List(ctx context.Context) ([]models.ContentSection, error)
	Upsert(ctx context.Context, s *models.ContentSection) error
	Delete(ctx context.Context, id string) error
}

// Repository handles content section persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a content repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sectionColumns = `id, key, title, type, body, COALESCE(image_url,''), updated_by, created_at, updated_at`

func scanSection(row pgx.Row) (*models.ContentSection, error) {
	var s models.ContentSection
	err := row.Scan(&s.ID, &s.Key, &s.Title, &s.Type, &s.Body, &s.ImageURL, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a section by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.ContentSection, error) {
	return scanSection(r.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM content_sections WHERE id = $1`, id))
}

// GetByKey returns a section by its page key.
func (r *Repository) GetByKey(ctx context.Context, key string) (*models.ContentSection, error) {
	return scanSection(r.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM content_sections WHERE key = $1`, key))
}

// List returns every section ordered by key.
func (r *Repository) List(ctx context.Context) ([]models.ContentSection, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectionColumns+` FROM content_sections ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ContentSection{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Upsert creates or replaces a section and refreshes its timestamps.
func (r *Repository) Upsert(ctx context.Context, s *models.ContentSection) error {
	const q = `INSERT INTO content_sections (id, key, title, type, body, image_url, updated_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7)
		ON CONFLICT (id) DO UPDATE SET key = EXCLUDED.key, title = EXCLUDED.title, type = EXCLUDED.type,
			body = EXCLUDED.body, image_url = EXCLUDED.image_url, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.ID, s.Key, s.Title, string(s.Type), s.Body, s.ImageURL, s.UpdatedBy).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

// Delete removes a section together with the grants that name it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM content_sections WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM permission_grants WHERE content_section_id = $1`, id)
		return err
	})
}

// Package posts serves blog-style posts grouped by category.
package posts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shul-site/backend/internal/models"
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

// ListFilter narrows List results.
type ListFilter struct {
	Category      string
	PublishedOnly bool
	Now           time.Time
	Limit         int
	Offset        int
}

// Store is the post persistence used by the handler.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, f ListFilter) ([]models.Post, error)
	Create(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository handles post persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a posts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const postColumns = `id, category, title, body, COALESCE(image_url,''), published, author_id, publish_at, created_at, updated_at`

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.Category, &p.Title, &p.Body, &p.ImageURL, &p.Published, &p.AuthorID, &p.PublishAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a post by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

// List returns posts newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Post, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	const q = `SELECT ` + postColumns + ` FROM posts
		WHERE ($1 = '' OR category = $1)
		  AND (NOT $2 OR (published AND (publish_at IS NULL OR publish_at <= $3)))
		ORDER BY COALESCE(publish_at, created_at) DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, f.Category, f.PublishedOnly, f.Now, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Create inserts a post.
func (r *Repository) Create(ctx context.Context, p *models.Post) error {
	const q = `INSERT INTO posts (category, title, body, image_url, published, author_id, publish_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Category, p.Title, p.Body, p.ImageURL, p.Published, p.AuthorID, p.PublishAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update replaces the editable fields of a post.
func (r *Repository) Update(ctx context.Context, p *models.Post) error {
	const q = `UPDATE posts SET category = $2, title = $3, body = $4, image_url = NULLIF($5,''), published = $6,
			publish_at = $7, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, p.ID, p.Category, p.Title, p.Body, p.ImageURL, p.Published, p.PublishAt).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a post.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Package payments stores captured checkouts and serves them to super-admins.
package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shul-site/backend/internal/models"
)

// Repository handles payment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts p unless the provider transaction is already stored.
// created is false for a duplicate.
func (r *Repository) Record(ctx context.Context, p *models.Payment) (created bool, err error) {
	const q = `INSERT INTO payments (provider, provider_order_id, provider_transaction_id, catalog, payer_name,
			amount, currency, status, description, line_items, captured_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_transaction_id) DO NOTHING
		RETURNING id, created_at`
	err = r.pool.QueryRow(ctx, q, p.Provider, p.ProviderOrderID, p.ProviderTransactionID, p.Catalog, p.PayerName,
		p.Amount, p.Currency, p.Status, p.Description, p.LineItems, p.CapturedAt).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListRecent returns the newest payments, optionally for one catalog.
func (r *Repository) ListRecent(ctx context.Context, catalog string, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, provider, provider_order_id, provider_transaction_id, catalog,
			COALESCE(payer_name,''), amount, currency, status, description, line_items, captured_at, created_at
		FROM payments WHERE ($1 = '' OR catalog = $1) ORDER BY captured_at DESC LIMIT $2`, catalog, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.Provider, &p.ProviderOrderID, &p.ProviderTransactionID, &p.Catalog,
			&p.PayerName, &p.Amount, &p.Currency, &p.Status, &p.Description, &p.LineItems, &p.CapturedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound возвращается и для чужой организации: существование
// чужих строк не раскрываем.
var ErrNotFound = errors.New("products: not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, sku, name, uom, created_at
		FROM products
		WHERE id = $1 AND org_id = $2
	`, id, orgID)

	var p Product
	if err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.UOM, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

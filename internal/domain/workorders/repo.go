package workorders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("workorders: not found")
	ErrInvalidState = errors.New("workorders: invalid status transition")
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*WorkOrder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, wo_number, warehouse_id, status, created_at
		FROM work_orders
		WHERE id = $1 AND org_id = $2
	`, id, orgID)

	var wo WorkOrder
	if err := row.Scan(&wo.ID, &wo.OrgID, &wo.Number, &wo.WarehouseID, &wo.Status, &wo.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

const materialColumns = `
	id, org_id, wo_id, product_id, material_name,
	required_qty, reserved_qty, consumed_qty, uom, sequence, created_at`

func scanMaterial(row pgx.Row, m *Material) error {
	return row.Scan(
		&m.ID,
		&m.OrgID,
		&m.WOID,
		&m.ProductID,
		&m.Name,
		&m.RequiredQty,
		&m.ReservedQty,
		&m.ConsumedQty,
		&m.UOM,
		&m.Sequence,
		&m.CreatedAt,
	)
}

func (r *Repo) GetMaterial(ctx context.Context, orgID, woID, materialID uuid.UUID) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+materialColumns+`
		FROM wo_materials
		WHERE id = $1 AND wo_id = $2 AND org_id = $3
	`, materialID, woID, orgID)

	var m Material
	if err := scanMaterial(row, &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) Materials(ctx context.Context, orgID, woID uuid.UUID) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+materialColumns+`
		FROM wo_materials
		WHERE wo_id = $1 AND org_id = $2
		ORDER BY sequence
	`, woID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		var m Material
		if err := scanMaterial(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddReserved сдвигает reserved_qty на delta; вниз — не ниже нуля.
func (r *Repo) AddReserved(ctx context.Context, orgID, materialID uuid.UUID, delta decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE wo_materials
		SET reserved_qty = GREATEST(reserved_qty + $3, 0)
		WHERE id = $1 AND org_id = $2
	`, materialID, orgID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveReservedToConsumed переносит количество из резерва в потребление
// при фактическом расходе материала производством.
func (r *Repo) MoveReservedToConsumed(ctx context.Context, orgID, materialID uuid.UUID, qty decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE wo_materials
		SET reserved_qty = GREATEST(reserved_qty - $3, 0),
		    consumed_qty = consumed_qty + $3
		WHERE id = $1 AND org_id = $2
	`, materialID, orgID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetReserved обнуляет reserved_qty всех строк заказа после
// массового снятия броней.
func (r *Repo) ResetReserved(ctx context.Context, orgID, woID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wo_materials
		SET reserved_qty = 0
		WHERE wo_id = $1 AND org_id = $2
	`, woID, orgID)
	return err
}

// SetStatus переводит заказ в новый статус с проверкой графа переходов
// прямо в условии UPDATE, чтобы гонка двух переходов не прошла дважды.
func (r *Repo) SetStatus(ctx context.Context, orgID, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_orders
		SET status = $4
		WHERE id = $1 AND org_id = $2 AND status = $3
	`, id, orgID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

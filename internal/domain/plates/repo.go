package plates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("plates: not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const plateColumns = `
	lp.id, lp.org_id, lp.lp_number, lp.product_id, lp.warehouse_id, lp.location_id,
	lp.quantity, lp.uom, lp.status, lp.qa_status, lp.lot_number, lp.expiry_date, lp.created_at`

func scanPlate(row pgx.Row, p *Plate) error {
	return row.Scan(
		&p.ID,
		&p.OrgID,
		&p.Number,
		&p.ProductID,
		&p.WarehouseID,
		&p.LocationID,
		&p.Quantity,
		&p.UOM,
		&p.Status,
		&p.QAStatus,
		&p.LotNumber,
		&p.ExpiryDate,
		&p.CreatedAt,
	)
}

func (r *Repo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Plate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+plateColumns+`
		FROM license_plates lp
		WHERE lp.id = $1 AND lp.org_id = $2
	`, id, orgID)

	var p Plate
	if err := scanPlate(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Candidates возвращает плейты, пригодные под резерв, со свободным
// остатком. Просроченные и не прошедшие QA отфильтрованы; статус
// reserved включён намеренно — конфликты показываем, а не прячем.
func (r *Repo) Candidates(ctx context.Context, orgID, productID uuid.UUID, uom, search string, s Settings) ([]Candidate, error) {
	q := `
		SELECT` + plateColumns + `,
		       lp.quantity - COALESCE(res.active_qty, 0) AS available,
		       lp.expiry_date IS NOT NULL
		           AND lp.expiry_date < CURRENT_DATE + make_interval(days => $4) AS expiry_soon
		FROM license_plates lp
		LEFT JOIN (
			SELECT lp_id, SUM(quantity) AS active_qty
			FROM lp_reservations
			WHERE status = 'active'
			GROUP BY lp_id
		) res ON res.lp_id = lp.id
		WHERE lp.org_id = $1
		  AND lp.product_id = $2
		  AND lp.uom = $3
		  AND lp.qa_status = 'passed'
		  AND lp.status IN ('available','reserved')
		  AND lp.quantity > 0
		  AND (lp.expiry_date IS NULL OR lp.expiry_date >= CURRENT_DATE)
	`
	args := []any{orgID, productID, uom, s.FEFOWarningDays}

	if search != "" {
		q += ` AND (lp.lp_number ILIKE '%' || $5 || '%' OR lp.lot_number ILIKE '%' || $5 || '%')`
		args = append(args, search)
	}

	if s.EnableFEFO {
		q += ` ORDER BY lp.expiry_date ASC NULLS LAST, lp.created_at ASC`
	} else {
		q += ` ORDER BY lp.created_at ASC`
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.ID,
			&c.OrgID,
			&c.Number,
			&c.ProductID,
			&c.WarehouseID,
			&c.LocationID,
			&c.Quantity,
			&c.UOM,
			&c.Status,
			&c.QAStatus,
			&c.LotNumber,
			&c.ExpiryDate,
			&c.CreatedAt,
			&c.Available,
			&c.ExpirySoon,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// OrgSettings читает настройки склада; при отсутствии строки — дефолт.
func (r *Repo) OrgSettings(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT enable_fefo, fefo_warning_days
		FROM warehouse_settings
		WHERE org_id = $1
	`, orgID)

	var s Settings
	if err := row.Scan(&s.EnableFEFO, &s.FEFOWarningDays); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	return s, nil
}

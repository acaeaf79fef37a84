package reservations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// CommitOutcome — итог условной записи одной брони.
type CommitOutcome struct {
	Committed bool
	Available decimal.Decimal
	Reason    RejectReason
}

// Commit выполняет условную запись: в одной транзакции блокирует
// строку плейта, пересчитывает свободный остаток и вставляет бронь,
// только если количество всё ещё помещается. Узкое место гонки
// check-then-act закрыто блокировкой строки.
func (r *Repo) Commit(ctx context.Context, res *Reservation) (CommitOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CommitOutcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var onHand decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT status, quantity
		FROM license_plates
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`, res.PlateID, res.OrgID).Scan(&status, &onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CommitOutcome{Reason: ReasonNotFound}, nil
		}
		return CommitOutcome{}, err
	}

	switch status {
	case "consumed":
		return CommitOutcome{Reason: ReasonAlreadyConsumed}, nil
	case "blocked":
		return CommitOutcome{Reason: ReasonBlocked}, nil
	}

	var reserved decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM lp_reservations
		WHERE lp_id = $1 AND status = 'active'
	`, res.PlateID).Scan(&reserved)
	if err != nil {
		return CommitOutcome{}, err
	}

	available := onHand.Sub(reserved)
	if available.LessThan(res.Quantity) {
		return CommitOutcome{Available: available, Reason: ReasonInsufficientAvailability}, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO lp_reservations (id, org_id, wo_id, wo_material_id, lp_id, quantity, status, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,'active',$7)
		RETURNING created_at
	`, res.ID, res.OrgID, res.WOID, res.MaterialID, res.PlateID, res.Quantity, res.CreatedBy).Scan(&res.CreatedAt)
	if err != nil {
		return CommitOutcome{}, err
	}
	res.Status = StatusActive

	if err := tx.Commit(ctx); err != nil {
		return CommitOutcome{}, err
	}
	return CommitOutcome{Committed: true, Available: available}, nil
}

const reservationColumns = `
	r.id, r.org_id, r.wo_id, r.wo_material_id, r.lp_id,
	r.quantity, r.status, r.created_by, r.created_at, r.released_at,
	lp.lp_number`

func scanReservation(row pgx.Row, res *Reservation) error {
	return row.Scan(
		&res.ID,
		&res.OrgID,
		&res.WOID,
		&res.MaterialID,
		&res.PlateID,
		&res.Quantity,
		&res.Status,
		&res.CreatedBy,
		&res.CreatedAt,
		&res.ReleasedAt,
		&res.PlateNumber,
	)
}

func (r *Repo) Get(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+reservationColumns+`
		FROM lp_reservations r
		JOIN license_plates lp ON lp.id = r.lp_id
		WHERE r.id = $1 AND r.org_id = $2
	`, id, orgID)

	var res Reservation
	if err := scanReservation(row, &res); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Transition переводит бронь из from в to одним условным UPDATE:
// машина состояний живёт в самом предикате записи.
func (r *Repo) Transition(ctx context.Context, orgID, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lp_reservations
		SET status = $4,
		    released_at = CASE WHEN $4 = 'cancelled' THEN now() ELSE released_at END
		WHERE id = $1 AND org_id = $2 AND status = $3
	`, id, orgID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) ListActiveByMaterial(ctx context.Context, orgID, materialID uuid.UUID) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+reservationColumns+`
		FROM lp_reservations r
		JOIN license_plates lp ON lp.id = r.lp_id
		WHERE r.wo_material_id = $1 AND r.org_id = $2 AND r.status = 'active'
		ORDER BY r.created_at
	`, materialID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var res Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ActiveByPlate возвращает активные брони плейта с номерами заказов —
// сырьё для отчёта о конфликтах.
func (r *Repo) ActiveByPlate(ctx context.Context, orgID, plateID uuid.UUID) ([]Conflict, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.wo_id, wo.wo_number, r.quantity
		FROM lp_reservations r
		JOIN work_orders wo ON wo.id = r.wo_id
		WHERE r.lp_id = $1 AND r.org_id = $2 AND r.status = 'active'
		ORDER BY r.created_at
	`, plateID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conflict
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.WOID, &c.WONumber, &c.Quantity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReleaseForWorkOrder массово снимает активные брони заказа.
// Потреблённые не трогаем; повторный вызов отпускает ноль строк.
func (r *Repo) ReleaseForWorkOrder(ctx context.Context, orgID, woID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lp_reservations
		SET status = 'cancelled', released_at = now()
		WHERE wo_id = $1 AND org_id = $2 AND status = 'active'
	`, woID, orgID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

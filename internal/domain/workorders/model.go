package workorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPlanned    Status = "planned"
	StatusReleased   Status = "released"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type WorkOrder struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Number      string
	WarehouseID uuid.UUID
	Status      Status
	CreatedAt   time.Time
}

// Material — строка спецификации заказа: потребность в продукте.
type Material struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	WOID        uuid.UUID
	ProductID   uuid.UUID
	Name        string
	RequiredQty decimal.Decimal
	ReservedQty decimal.Decimal
	ConsumedQty decimal.Decimal
	UOM         string
	Sequence    int
	CreatedAt   time.Time
}

// RemainingToReserve — сколько ещё нужно зарезервировать.
func (m Material) RemainingToReserve() decimal.Decimal {
	rem := m.RequiredQty.Sub(m.ReservedQty)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

type CoverageStatus string

const (
	CoverageNone    CoverageStatus = "none"
	CoveragePartial CoverageStatus = "partial"
	CoverageFull    CoverageStatus = "full"
	CoverageOver    CoverageStatus = "over"
)

type Coverage struct {
	Percent  int
	Shortage decimal.Decimal
	Status   CoverageStatus
}

// ComputeCoverage считает покрытие потребности резервами.
func ComputeCoverage(required, reserved decimal.Decimal) Coverage {
	if required.IsZero() {
		if reserved.IsPositive() {
			return Coverage{Percent: 100, Shortage: decimal.Zero, Status: CoverageOver}
		}
		return Coverage{Percent: 0, Shortage: decimal.Zero, Status: CoverageNone}
	}

	percent := int(reserved.Div(required).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	shortage := required.Sub(reserved)
	if shortage.IsNegative() {
		shortage = decimal.Zero
	}

	var st CoverageStatus
	switch {
	case reserved.IsZero():
		st = CoverageNone
	case reserved.GreaterThan(required):
		st = CoverageOver
	default:
		st = CoveragePartial
		if reserved.GreaterThanOrEqual(required) {
			st = CoverageFull
		}
	}
	return Coverage{Percent: percent, Shortage: shortage, Status: st}
}

// CanModifyReservations: резервы можно менять только пока заказ
// не в терминальном статусе.
func CanModifyReservations(s Status) bool {
	switch s {
	case StatusPlanned, StatusReleased, StatusInProgress:
		return true
	}
	return false
}

// CanTransition описывает граф статусов заказа.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPlanned:
		return to == StatusReleased || to == StatusCancelled
	case StatusReleased:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// IsTerminal — после completed/cancelled переходов нет.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

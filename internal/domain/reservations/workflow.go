package reservations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/workorders"
)

// MaterialReservations — строка материалов с её активными бронями
// и покрытием потребности.
type MaterialReservations struct {
	Material     workorders.Material
	Reservations []Reservation
	Coverage     workorders.Coverage
	RemainingQty decimal.Decimal
}

func (s *Service) MaterialsWithReservations(ctx context.Context, orgID, woID uuid.UUID) ([]MaterialReservations, error) {
	if _, err := s.wos.GetByID(ctx, orgID, woID); err != nil {
		return nil, notFound(err)
	}

	mats, err := s.wos.Materials(ctx, orgID, woID)
	if err != nil {
		return nil, err
	}

	out := make([]MaterialReservations, 0, len(mats))
	for _, m := range mats {
		list, err := s.store.ListActiveByMaterial(ctx, orgID, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, MaterialReservations{
			Material:     m,
			Reservations: list,
			Coverage:     workorders.ComputeCoverage(m.RequiredQty, m.ReservedQty),
			RemainingQty: m.RemainingToReserve(),
		})
	}
	return out, nil
}

type MaterialShortage struct {
	MaterialID uuid.UUID
	Name       string
	Required   decimal.Decimal
	Reserved   decimal.Decimal
	Shortage   decimal.Decimal
	UOM        string
}

type ReserveAllResult struct {
	MaterialsProcessed int
	FullyReserved      int
	PartiallyReserved  int
	Shortages          []MaterialShortage
	Warnings           []string
}

// ReserveAll авторезервирует все строки материалов заказа в порядке
// спецификации. Нехватка по строкам — данные ответа; при наличии
// нехватки уходит алерт в админ-чат.
func (s *Service) ReserveAll(ctx context.Context, orgID, userID, woID uuid.UUID) (*ReserveAllResult, error) {
	wo, err := s.wos.GetByID(ctx, orgID, woID)
	if err != nil {
		return nil, notFound(err)
	}
	if !workorders.CanModifyReservations(wo.Status) {
		return nil, fmt.Errorf("%w: work order is %s", ErrInvalidState, wo.Status)
	}

	mats, err := s.wos.Materials(ctx, orgID, woID)
	if err != nil {
		return nil, err
	}

	result := &ReserveAllResult{MaterialsProcessed: len(mats)}
	for _, m := range mats {
		if !m.RequiredQty.IsPositive() {
			continue
		}
		if !m.RemainingToReserve().IsPositive() {
			result.FullyReserved++
			continue
		}

		out, err := s.allocateAuto(ctx, orgID, userID, wo, &m, decimal.Zero)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, out.Warnings...)

		reserved := m.ReservedQty
		for _, r := range out.Committed {
			reserved = reserved.Add(r.Quantity)
		}
		if reserved.GreaterThanOrEqual(m.RequiredQty) {
			result.FullyReserved++
			continue
		}
		if reserved.IsPositive() {
			result.PartiallyReserved++
		}
		result.Shortages = append(result.Shortages, MaterialShortage{
			MaterialID: m.ID,
			Name:       m.Name,
			Required:   m.RequiredQty,
			Reserved:   reserved,
			Shortage:   m.RequiredQty.Sub(reserved),
			UOM:        m.UOM,
		})
	}

	if len(result.Shortages) > 0 && s.notify != nil {
		lines := make([]string, 0, len(result.Shortages))
		for _, sh := range result.Shortages {
			lines = append(lines, fmt.Sprintf("%s: нужно %s, в резерве %s, не хватает %s %s",
				sh.Name, sh.Required, sh.Reserved, sh.Shortage, sh.UOM))
		}
		s.notify.Shortage(wo.Number, lines)
	}
	return result, nil
}

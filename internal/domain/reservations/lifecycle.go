package reservations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/warelane/lp-reserve/internal/domain/workorders"
	"github.com/warelane/lp-reserve/internal/infra/metrics"
)

// Cancel снимает активную бронь. active — единственный статус,
// из которого есть переходы; остальные терминальны.
func (s *Service) Cancel(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if res.Status != StatusActive {
		return fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}

	ok, err := s.store.Transition(ctx, orgID, id, StatusActive, StatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: reservation is no longer active", ErrInvalidState)
	}

	if err := s.wos.AddReserved(ctx, orgID, res.MaterialID, res.Quantity.Neg()); err != nil {
		return err
	}
	metrics.ReservationsCancelled.Inc()
	return nil
}

// Consume помечает бронь потреблённой производством и переносит
// количество из reserved_qty в consumed_qty материала.
func (s *Service) Consume(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if res.Status != StatusActive {
		return fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}

	ok, err := s.store.Transition(ctx, orgID, id, StatusActive, StatusConsumed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: reservation is no longer active", ErrInvalidState)
	}

	if err := s.wos.MoveReservedToConsumed(ctx, orgID, res.MaterialID, res.Quantity); err != nil {
		return err
	}
	metrics.ReservationsConsumed.Inc()
	return nil
}

// AutoReleaseForWorkOrder снимает все активные брони заказа.
// Потреблённые не трогаем; повторный вызов вернёт ноль.
func (s *Service) AutoReleaseForWorkOrder(ctx context.Context, orgID, woID uuid.UUID) (int64, error) {
	released, err := s.store.ReleaseForWorkOrder(ctx, orgID, woID)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		if err := s.wos.ResetReserved(ctx, orgID, woID); err != nil {
			return released, err
		}
		metrics.ReservationsCancelled.Add(float64(released))
	}
	return released, nil
}

// TransitionWorkOrder переводит заказ по графу статусов; терминальный
// переход автоматически отпускает брони и возвращает их число.
func (s *Service) TransitionWorkOrder(ctx context.Context, orgID, woID uuid.UUID, to workorders.Status) (int64, error) {
	wo, err := s.wos.GetByID(ctx, orgID, woID)
	if err != nil {
		return 0, notFound(err)
	}
	if !workorders.CanTransition(wo.Status, to) {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidState, wo.Status, to)
	}

	if err := s.wos.SetStatus(ctx, orgID, woID, wo.Status, to); err != nil {
		if errors.Is(err, workorders.ErrInvalidState) {
			return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidState, wo.Status, to)
		}
		return 0, err
	}

	if !workorders.IsTerminal(to) {
		return 0, nil
	}
	released, err := s.AutoReleaseForWorkOrder(ctx, orgID, woID)
	if err != nil {
		return 0, err
	}
	s.log.Info("work order reservations auto-released",
		"wo", wo.Number, "status", string(to), "released", released)
	return released, nil
}

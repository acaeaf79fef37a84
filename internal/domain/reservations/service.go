package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/plates"
	"github.com/warelane/lp-reserve/internal/domain/products"
	"github.com/warelane/lp-reserve/internal/domain/workorders"
	"github.com/warelane/lp-reserve/internal/infra/metrics"
)

type ProductStore interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*products.Product, error)
}

type PlateStore interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*plates.Plate, error)
	Candidates(ctx context.Context, orgID, productID uuid.UUID, uom, search string, s plates.Settings) ([]plates.Candidate, error)
	OrgSettings(ctx context.Context, orgID uuid.UUID) (plates.Settings, error)
}

type WorkOrderStore interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*workorders.WorkOrder, error)
	GetMaterial(ctx context.Context, orgID, woID, materialID uuid.UUID) (*workorders.Material, error)
	Materials(ctx context.Context, orgID, woID uuid.UUID) ([]workorders.Material, error)
	AddReserved(ctx context.Context, orgID, materialID uuid.UUID, delta decimal.Decimal) error
	MoveReservedToConsumed(ctx context.Context, orgID, materialID uuid.UUID, qty decimal.Decimal) error
	ResetReserved(ctx context.Context, orgID, woID uuid.UUID) error
	SetStatus(ctx context.Context, orgID, id uuid.UUID, from, to workorders.Status) error
}

type Store interface {
	Commit(ctx context.Context, res *Reservation) (CommitOutcome, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*Reservation, error)
	Transition(ctx context.Context, orgID, id uuid.UUID, from, to Status) (bool, error)
	ListActiveByMaterial(ctx context.Context, orgID, materialID uuid.UUID) ([]Reservation, error)
	ActiveByPlate(ctx context.Context, orgID, plateID uuid.UUID) ([]Conflict, error)
	ReleaseForWorkOrder(ctx context.Context, orgID, woID uuid.UUID) (int64, error)
}

type Notifier interface {
	Shortage(woNumber string, lines []string)
}

type Service struct {
	log      *slog.Logger
	products ProductStore
	plates   PlateStore
	wos      WorkOrderStore
	store    Store
	notify   Notifier
	maxLine  decimal.Decimal
}

func NewService(log *slog.Logger, productStore ProductStore, plateStore PlateStore,
	woStore WorkOrderStore, store Store, notify Notifier, maxLineQty decimal.Decimal) *Service {

	return &Service{
		log:      log,
		products: productStore,
		plates:   plateStore,
		wos:      woStore,
		store:    store,
		notify:   notify,
		maxLine:  maxLineQty,
	}
}

// notFound приводит "не найдено" нижних слоёв к одному сентинелу.
// Чужая организация выглядит так же, как отсутствующая строка.
func notFound(err error) error {
	if errors.Is(err, plates.ErrNotFound) ||
		errors.Is(err, products.ErrNotFound) ||
		errors.Is(err, workorders.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SearchResult — кандидаты под резерв плюс суммарный свободный остаток.
type SearchResult struct {
	Candidates     []plates.Candidate
	TotalAvailable decimal.Decimal
}

// SearchCandidates — селектор кандидатов: упорядоченный FEFO/FIFO
// список пригодных плейтов по продукту.
func (s *Service) SearchCandidates(ctx context.Context, orgID, productID uuid.UUID, uom, search string) (*SearchResult, error) {
	if _, err := s.products.GetByID(ctx, orgID, productID); err != nil {
		return nil, notFound(err)
	}

	settings, err := s.plates.OrgSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}

	cands, err := s.plates.Candidates(ctx, orgID, productID, uom, search, settings)
	if err != nil {
		return nil, err
	}
	sortCandidates(cands, settings)

	total := decimal.Zero
	for _, c := range cands {
		if c.Available.IsPositive() {
			total = total.Add(c.Available)
		}
	}
	return &SearchResult{Candidates: cands, TotalAvailable: total}, nil
}

func sortCandidates(cands []plates.Candidate, s plates.Settings) {
	if s.EnableFEFO {
		plates.SortFEFO(cands)
	} else {
		plates.SortFIFO(cands)
	}
}

// Allocate резервирует материал заказа: авторазмещение по FEFO/FIFO
// либо явный список строк. Каждая строка коммитится отдельной
// условной записью; частичный успех — нормальный ответ.
func (s *Service) Allocate(ctx context.Context, orgID, userID, woID, materialID uuid.UUID, req Request) (*Outcome, error) {
	wo, err := s.wos.GetByID(ctx, orgID, woID)
	if err != nil {
		return nil, notFound(err)
	}
	if !workorders.CanModifyReservations(wo.Status) {
		return nil, fmt.Errorf("%w: work order is %s", ErrInvalidState, wo.Status)
	}

	mat, err := s.wos.GetMaterial(ctx, orgID, woID, materialID)
	if err != nil {
		return nil, notFound(err)
	}

	if req.Auto {
		return s.allocateAuto(ctx, orgID, userID, wo, mat, req.Quantity)
	}
	return s.allocateExplicit(ctx, orgID, userID, wo, mat, req.Selections)
}

func (s *Service) allocateAuto(ctx context.Context, orgID, userID uuid.UUID,
	wo *workorders.WorkOrder, mat *workorders.Material, qty decimal.Decimal) (*Outcome, error) {

	if qty.IsNegative() || qty.GreaterThan(s.maxLine) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	required := qty
	if required.IsZero() {
		required = mat.RemainingToReserve()
	}

	out := &Outcome{Shortfall: decimal.Zero}
	if !required.IsPositive() {
		return out, nil
	}

	settings, err := s.plates.OrgSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	cands, err := s.plates.Candidates(ctx, orgID, mat.ProductID, mat.UOM, "", settings)
	if err != nil {
		return nil, err
	}
	sortCandidates(cands, settings)

	plan, shortfall := planAllocation(cands, required)
	out.Shortfall = shortfall

	for _, line := range plan {
		committed, err := s.commitLine(ctx, orgID, userID, wo, mat, line.Plate.ID, line.Quantity, out)
		if err != nil {
			return nil, err
		}
		if !committed {
			// Кандидата успели разобрать между выборкой и коммитом.
			out.Shortfall = out.Shortfall.Add(line.Quantity)
		}
	}

	if out.Shortfall.IsPositive() {
		metrics.AllocationShortfalls.Inc()
	}
	return out, nil
}

func (s *Service) allocateExplicit(ctx context.Context, orgID, userID uuid.UUID,
	wo *workorders.WorkOrder, mat *workorders.Material, sels []Selection) (*Outcome, error) {

	if len(sels) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidQuantity)
	}
	requested := decimal.Zero
	for _, sel := range sels {
		if !sel.Quantity.IsPositive() || sel.Quantity.GreaterThan(s.maxLine) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, sel.Quantity)
		}
		requested = requested.Add(sel.Quantity)
	}

	out := &Outcome{Shortfall: decimal.Zero}
	committedTotal := decimal.Zero

	for _, sel := range sels {
		lp, err := s.plates.GetByID(ctx, orgID, sel.PlateID)
		if err != nil {
			if errors.Is(err, plates.ErrNotFound) {
				out.Rejected = append(out.Rejected, RejectedLine{PlateID: sel.PlateID, Quantity: sel.Quantity, Reason: ReasonNotFound})
				continue
			}
			return nil, err
		}

		if reason, ok := rejectPlate(lp, mat); !ok {
			out.Rejected = append(out.Rejected, RejectedLine{PlateID: sel.PlateID, Quantity: sel.Quantity, Reason: reason})
			continue
		}

		committed, err := s.commitLine(ctx, orgID, userID, wo, mat, sel.PlateID, sel.Quantity, out)
		if err != nil {
			return nil, err
		}
		if committed {
			committedTotal = committedTotal.Add(sel.Quantity)
		}
	}

	out.Shortfall = requested.Sub(committedTotal)
	if out.Shortfall.IsPositive() {
		metrics.AllocationShortfalls.Inc()
	}
	return out, nil
}

// rejectPlate — статические проверки строки: статус плейта и
// соответствие продукту/единице измерения материала.
func rejectPlate(lp *plates.Plate, mat *workorders.Material) (RejectReason, bool) {
	switch lp.Status {
	case plates.StatusConsumed:
		return ReasonAlreadyConsumed, false
	case plates.StatusBlocked:
		return ReasonBlocked, false
	}
	if lp.ProductID != mat.ProductID {
		return ReasonProductMismatch, false
	}
	if lp.UOM != mat.UOM {
		return ReasonUOMMismatch, false
	}
	return "", true
}

// commitLine проводит одну бронь: предупреждения о чужих резервах,
// условная запись, обновление reserved_qty материала.
func (s *Service) commitLine(ctx context.Context, orgID, userID uuid.UUID,
	wo *workorders.WorkOrder, mat *workorders.Material,
	plateID uuid.UUID, qty decimal.Decimal, out *Outcome) (bool, error) {

	conflicts, err := s.Conflicts(ctx, orgID, plateID, wo.ID)
	if err != nil {
		return false, err
	}

	res := &Reservation{
		ID:         uuid.New(),
		OrgID:      orgID,
		WOID:       wo.ID,
		MaterialID: mat.ID,
		PlateID:    plateID,
		Quantity:   qty,
		CreatedBy:  userID,
	}

	outcome, err := s.store.Commit(ctx, res)
	if err != nil {
		return false, err
	}
	if !outcome.Committed {
		out.Rejected = append(out.Rejected, RejectedLine{PlateID: plateID, Quantity: qty, Reason: outcome.Reason})
		metrics.RejectedLines.Inc()
		return false, nil
	}

	if err := s.wos.AddReserved(ctx, orgID, mat.ID, qty); err != nil {
		return false, err
	}

	out.Committed = append(out.Committed, *res)
	metrics.ReservationsCreated.Inc()

	for _, c := range conflicts {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("LP already reserved by work order %s (%s)", c.WONumber, c.Quantity))
		metrics.ConflictWarnings.Inc()
	}
	return true, nil
}

// Conflicts агрегирует активные брони других заказов на плейте.
// Чистое чтение; пустой список — конфликтов нет.
func (s *Service) Conflicts(ctx context.Context, orgID, plateID, excludeWO uuid.UUID) ([]Conflict, error) {
	rows, err := s.store.ActiveByPlate(ctx, orgID, plateID)
	if err != nil {
		return nil, err
	}
	return aggregateConflicts(rows, excludeWO), nil
}

func aggregateConflicts(rows []Conflict, excludeWO uuid.UUID) []Conflict {
	var out []Conflict
	idx := map[uuid.UUID]int{}
	for _, row := range rows {
		if row.WOID == excludeWO {
			continue
		}
		if i, ok := idx[row.WOID]; ok {
			out[i].Quantity = out[i].Quantity.Add(row.Quantity)
			continue
		}
		idx[row.WOID] = len(out)
		out = append(out, row)
	}
	return out
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/plates"
	"github.com/warelane/lp-reserve/internal/domain/products"
	"github.com/warelane/lp-reserve/internal/domain/reservations"
	"github.com/warelane/lp-reserve/internal/domain/workorders"
	"github.com/warelane/lp-reserve/internal/infra/logger"
)

type world struct {
	org     uuid.UUID
	user    uuid.UUID
	product *products.Product
	plate   *plates.Plate
	wo      *workorders.WorkOrder
	mat     *workorders.Material
	res     []*reservations.Reservation
}

func newWorld() *world {
	w := &world{org: uuid.New(), user: uuid.New()}
	w.product = &products.Product{ID: uuid.New(), OrgID: w.org, SKU: "FLOUR-01", UOM: "kg"}
	w.plate = &plates.Plate{
		ID:        uuid.New(),
		OrgID:     w.org,
		Number:    "LP-001",
		ProductID: w.product.ID,
		Quantity:  decimal.NewFromInt(100),
		UOM:       "kg",
		Status:    plates.StatusAvailable,
		QAStatus:  plates.QAPassed,
		CreatedAt: time.Now(),
	}
	w.wo = &workorders.WorkOrder{ID: uuid.New(), OrgID: w.org, Number: "WO-001", Status: workorders.StatusInProgress}
	w.mat = &workorders.Material{
		ID:          uuid.New(),
		OrgID:       w.org,
		WOID:        w.wo.ID,
		ProductID:   w.product.ID,
		Name:        "Flour",
		RequiredQty: decimal.NewFromInt(60),
		UOM:         "kg",
		Sequence:    1,
	}
	return w
}

func (w *world) activeSum(plateID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range w.res {
		if r.PlateID == plateID && r.Status == reservations.StatusActive {
			sum = sum.Add(r.Quantity)
		}
	}
	return sum
}

type worldProducts struct{ w *world }

func (s worldProducts) GetByID(_ context.Context, orgID, id uuid.UUID) (*products.Product, error) {
	if s.w.product.ID == id && s.w.product.OrgID == orgID {
		return s.w.product, nil
	}
	return nil, products.ErrNotFound
}

type worldPlates struct{ w *world }

func (s worldPlates) GetByID(_ context.Context, orgID, id uuid.UUID) (*plates.Plate, error) {
	if s.w.plate.ID == id && s.w.plate.OrgID == orgID {
		return s.w.plate, nil
	}
	return nil, plates.ErrNotFound
}

func (s worldPlates) OrgSettings(_ context.Context, _ uuid.UUID) (plates.Settings, error) {
	return plates.DefaultSettings(), nil
}

func (s worldPlates) Candidates(_ context.Context, orgID, productID uuid.UUID, uom, _ string, _ plates.Settings) ([]plates.Candidate, error) {
	p := s.w.plate
	if p.OrgID != orgID || p.ProductID != productID || p.UOM != uom {
		return nil, nil
	}
	return []plates.Candidate{{Plate: *p, Available: p.Quantity.Sub(s.w.activeSum(p.ID))}}, nil
}

type worldWOs struct{ w *world }

func (s worldWOs) GetByID(_ context.Context, orgID, id uuid.UUID) (*workorders.WorkOrder, error) {
	if s.w.wo.ID == id && s.w.wo.OrgID == orgID {
		return s.w.wo, nil
	}
	return nil, workorders.ErrNotFound
}

func (s worldWOs) GetMaterial(_ context.Context, orgID, woID, materialID uuid.UUID) (*workorders.Material, error) {
	m := s.w.mat
	if m.ID == materialID && m.OrgID == orgID && m.WOID == woID {
		return m, nil
	}
	return nil, workorders.ErrNotFound
}

func (s worldWOs) Materials(_ context.Context, orgID, woID uuid.UUID) ([]workorders.Material, error) {
	if s.w.mat.OrgID == orgID && s.w.mat.WOID == woID {
		return []workorders.Material{*s.w.mat}, nil
	}
	return nil, nil
}

func (s worldWOs) AddReserved(_ context.Context, _, _ uuid.UUID, delta decimal.Decimal) error {
	s.w.mat.ReservedQty = s.w.mat.ReservedQty.Add(delta)
	if s.w.mat.ReservedQty.IsNegative() {
		s.w.mat.ReservedQty = decimal.Zero
	}
	return nil
}

func (s worldWOs) MoveReservedToConsumed(_ context.Context, _, _ uuid.UUID, qty decimal.Decimal) error {
	s.w.mat.ReservedQty = s.w.mat.ReservedQty.Sub(qty)
	s.w.mat.ConsumedQty = s.w.mat.ConsumedQty.Add(qty)
	return nil
}

func (s worldWOs) ResetReserved(_ context.Context, _, _ uuid.UUID) error {
	s.w.mat.ReservedQty = decimal.Zero
	return nil
}

func (s worldWOs) SetStatus(_ context.Context, orgID, id uuid.UUID, from, to workorders.Status) error {
	if s.w.wo.ID != id || s.w.wo.OrgID != orgID || s.w.wo.Status != from {
		return workorders.ErrInvalidState
	}
	s.w.wo.Status = to
	return nil
}

type worldRes struct{ w *world }

func (s worldRes) Commit(_ context.Context, res *reservations.Reservation) (reservations.CommitOutcome, error) {
	p := s.w.plate
	if p.ID != res.PlateID || p.OrgID != res.OrgID {
		return reservations.CommitOutcome{Reason: reservations.ReasonNotFound}, nil
	}
	available := p.Quantity.Sub(s.w.activeSum(p.ID))
	if available.LessThan(res.Quantity) {
		return reservations.CommitOutcome{Available: available, Reason: reservations.ReasonInsufficientAvailability}, nil
	}
	res.Status = reservations.StatusActive
	res.CreatedAt = time.Now()
	res.PlateNumber = p.Number
	cp := *res
	s.w.res = append(s.w.res, &cp)
	return reservations.CommitOutcome{Committed: true, Available: available}, nil
}

func (s worldRes) Get(_ context.Context, orgID, id uuid.UUID) (*reservations.Reservation, error) {
	for _, r := range s.w.res {
		if r.ID == id && r.OrgID == orgID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, reservations.ErrNotFound
}

func (s worldRes) Transition(_ context.Context, orgID, id uuid.UUID, from, to reservations.Status) (bool, error) {
	for _, r := range s.w.res {
		if r.ID == id && r.OrgID == orgID && r.Status == from {
			r.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s worldRes) ListActiveByMaterial(_ context.Context, orgID, materialID uuid.UUID) ([]reservations.Reservation, error) {
	var out []reservations.Reservation
	for _, r := range s.w.res {
		if r.OrgID == orgID && r.MaterialID == materialID && r.Status == reservations.StatusActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s worldRes) ActiveByPlate(_ context.Context, orgID, plateID uuid.UUID) ([]reservations.Conflict, error) {
	var out []reservations.Conflict
	for _, r := range s.w.res {
		if r.OrgID == orgID && r.PlateID == plateID && r.Status == reservations.StatusActive {
			out = append(out, reservations.Conflict{WOID: r.WOID, WONumber: "WO-OTHER", Quantity: r.Quantity})
		}
	}
	return out, nil
}

func (s worldRes) ReleaseForWorkOrder(_ context.Context, orgID, woID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range s.w.res {
		if r.OrgID == orgID && r.WOID == woID && r.Status == reservations.StatusActive {
			r.Status = reservations.StatusCancelled
			n++
		}
	}
	return n, nil
}

func newTestHandler(w *world) *Handler {
	svc := reservations.NewService(
		logger.New("test"),
		worldProducts{w},
		worldPlates{w},
		worldWOs{w},
		worldRes{w},
		nil,
		decimal.NewFromInt(1_000_000),
	)
	return NewHandler(logger.New("test"), svc)
}

func (w *world) request(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set(headerOrg, w.org.String())
	r.Header.Set(headerUser, w.user.String())
	r.Header.Set(headerRole, "operator")
	return r
}

func do(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestMissingOrgHeader(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	r := httptest.NewRequest(http.MethodGet, "/api/work-orders/"+w.wo.ID.String()+"/materials", nil)
	rec := do(h, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "Unauthorized" {
		t.Errorf("code = %s, want Unauthorized", code)
	}
}

func TestMutationRequiresRole(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	r := w.request(http.MethodPost, "/api/work-orders/"+w.wo.ID.String()+"/reserve-all", nil)
	r.Header.Set(headerRole, "viewer")
	rec := do(h, r)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUnknownWorkOrderIsNotFound(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	rec := do(h, w.request(http.MethodGet, "/api/work-orders/"+uuid.NewString()+"/materials", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = do(h, w.request(http.MethodGet, "/api/work-orders/not-a-uuid/materials", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("malformed id: status = %d, want 404", rec.Code)
	}
}

func TestCrossTenantIsNotFound(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	r := w.request(http.MethodGet, "/api/work-orders/"+w.wo.ID.String()+"/materials", nil)
	r.Header.Set(headerOrg, uuid.NewString())
	rec := do(h, r)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, never 403", rec.Code)
	}
}

func TestSearchAvailable(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/license-plates/available?product_id=" + w.product.ID.String() + "&uom=kg"
	rec := do(h, w.request(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var body searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.LPs) != 1 || body.LPs[0].Number != "LP-001" {
		t.Fatalf("lps = %+v, want one LP-001", body.LPs)
	}
	if !body.TotalAvailable.Equal(decimal.NewFromInt(100)) {
		t.Errorf("total_available = %s, want 100", body.TotalAvailable)
	}
}

func TestCreateReservationsAuto(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	rec := do(h, w.request(http.MethodPost, path, map[string]any{"mode": "auto"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var body outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Committed) != 1 || !body.Committed[0].Quantity.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("committed = %+v, want one line of 60", body.Committed)
	}
	if !body.Shortfall.IsZero() {
		t.Errorf("shortfall = %s, want 0", body.Shortfall)
	}
}

func TestCreateReservationsUnknownMode(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	rec := do(h, w.request(http.MethodPost, path, map[string]any{"mode": "fefo"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "ValidationError" {
		t.Errorf("code = %s, want ValidationError", code)
	}
}

func TestCreateReservationsInvalidQuantity(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	rec := do(h, w.request(http.MethodPost, path, map[string]any{
		"mode":       "explicit",
		"selections": []map[string]any{{"lp_id": w.plate.ID, "quantity": "-5"}},
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "InvalidQuantity" {
		t.Errorf("code = %s, want InvalidQuantity", code)
	}
}

func TestCancelReservationLifecycle(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	rec := do(h, w.request(http.MethodPost, path, map[string]any{
		"mode":       "explicit",
		"selections": []map[string]any{{"lp_id": w.plate.ID, "quantity": "40"}},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status = %d: %s", rec.Code, rec.Body)
	}
	var out outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out.Committed) != 1 {
		t.Fatalf("create outcome: %v %+v", err, out)
	}
	resID := out.Committed[0].ID.String()

	rec = do(h, w.request(http.MethodDelete, "/api/reservations/"+resID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status = %d, want 204", rec.Code)
	}

	rec = do(h, w.request(http.MethodDelete, "/api/reservations/"+resID, nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: status = %d, want 409", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "InvalidState" {
		t.Errorf("code = %s, want InvalidState", code)
	}
}

func TestConsumeReservation(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	rec := do(h, w.request(http.MethodPost, path, map[string]any{"mode": "auto"}))
	var out outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out.Committed) != 1 {
		t.Fatalf("create outcome: %v %+v", err, out)
	}

	rec = do(h, w.request(http.MethodPost, "/api/reservations/"+out.Committed[0].ID.String()+"/consume", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("consume: status = %d, want 204", rec.Code)
	}
	if !w.mat.ConsumedQty.Equal(decimal.NewFromInt(60)) {
		t.Errorf("consumed_qty = %s, want 60", w.mat.ConsumedQty)
	}
}

func TestSetStatusReleasesReservations(t *testing.T) {
	w := newWorld()
	h := newTestHandler(w)

	path := "/api/work-orders/" + w.wo.ID.String() + "/materials/" + w.mat.ID.String() + "/reservations"
	if rec := do(h, w.request(http.MethodPost, path, map[string]any{"mode": "auto"})); rec.Code != http.StatusOK {
		t.Fatalf("create: status = %d", rec.Code)
	}

	rec := do(h, w.request(http.MethodPost, "/api/work-orders/"+w.wo.ID.String()+"/status",
		map[string]string{"status": "completed"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var body map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["released_count"] != 1 {
		t.Errorf("released_count = %d, want 1", body["released_count"])
	}

	rec = do(h, w.request(http.MethodPost, "/api/work-orders/"+w.wo.ID.String()+"/status",
		map[string]string{"status": "cancelled"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("terminal transition: status = %d, want 409", rec.Code)
	}
}

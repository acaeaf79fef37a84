package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/warelane/lp-reserve/internal/domain/reservations"
	"github.com/warelane/lp-reserve/internal/domain/workorders"
)

// Identity приходит от вышестоящего шлюза аутентификации в заголовках;
// сам сервис сессий не держит.
const (
	headerOrg  = "X-Org-ID"
	headerUser = "X-User-ID"
	headerRole = "X-Role"
)

var mutationRoles = map[string]bool{
	"admin":    true,
	"manager":  true,
	"operator": true,
}

type Handler struct {
	log *slog.Logger
	svc *reservations.Service
	mux *http.ServeMux
}

func NewHandler(log *slog.Logger, svc *reservations.Service) *Handler {
	h := &Handler{log: log, svc: svc, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/license-plates/available", h.searchAvailable)
	h.mux.HandleFunc("GET /api/work-orders/{id}/materials", h.listMaterials)
	h.mux.HandleFunc("POST /api/work-orders/{id}/materials/{materialID}/reservations", h.createReservations)
	h.mux.HandleFunc("POST /api/work-orders/{id}/reserve-all", h.reserveAll)
	h.mux.HandleFunc("POST /api/work-orders/{id}/status", h.setStatus)
	h.mux.HandleFunc("GET /api/work-orders/{id}/reservations/export", h.exportReservations)
	h.mux.HandleFunc("DELETE /api/reservations/{id}", h.cancelReservation)
	h.mux.HandleFunc("POST /api/reservations/{id}/consume", h.consumeReservation)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

type caller struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
	Role   string
}

var (
	errUnauthorized = errors.New("api: unauthorized")
	errForbidden    = errors.New("api: forbidden")
	errBadRequest   = errors.New("api: bad request")
)

func identify(r *http.Request) (caller, error) {
	orgID, err := uuid.Parse(r.Header.Get(headerOrg))
	if err != nil {
		return caller{}, errUnauthorized
	}
	c := caller{OrgID: orgID, Role: r.Header.Get(headerRole)}
	if raw := r.Header.Get(headerUser); raw != "" {
		if c.UserID, err = uuid.Parse(raw); err != nil {
			return caller{}, errUnauthorized
		}
	}
	return c, nil
}

func (h *Handler) mutator(r *http.Request) (caller, error) {
	c, err := identify(r)
	if err != nil {
		return c, err
	}
	if c.UserID == uuid.Nil {
		return c, errUnauthorized
	}
	if !mutationRoles[c.Role] {
		return c, errForbidden
	}
	return c, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError переводит сентинелы домена в HTTP-статусы. NotFound —
// всегда 404, в том числе для чужой организации.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "Unauthorized"})
	case errors.Is(err, errForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "Forbidden"})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "ValidationError"})
	case errors.Is(err, reservations.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "NotFound"})
	case errors.Is(err, reservations.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "InvalidQuantity"})
	case errors.Is(err, reservations.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "InvalidState"})
	default:
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "Internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad %s", reservations.ErrNotFound, name)
	}
	return id, nil
}

func (h *Handler) searchAvailable(w http.ResponseWriter, r *http.Request) {
	c, err := identify(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	q := r.URL.Query()
	productID, err := uuid.Parse(q.Get("product_id"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: bad product_id", reservations.ErrNotFound))
		return
	}

	res, err := h.svc.SearchCandidates(r.Context(), c.OrgID, productID, q.Get("uom"), q.Get("search"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(res))
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	c, err := identify(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	woID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	mats, err := h.svc.MaterialsWithReservations(r.Context(), c.OrgID, woID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialsResponse(mats))
}

func (h *Handler) createReservations(w http.ResponseWriter, r *http.Request) {
	c, err := h.mutator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	woID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	materialID, err := pathUUID(r, "materialID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	req, err := decodeAllocateRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.svc.Allocate(r.Context(), c.OrgID, c.UserID, woID, materialID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *Handler) reserveAll(w http.ResponseWriter, r *http.Request) {
	c, err := h.mutator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	woID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.ReserveAll(r.Context(), c.OrgID, c.UserID, woID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReserveAllResponse(res))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	c, err := h.mutator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	woID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, fmt.Errorf("%w: bad body", errBadRequest))
		return
	}

	released, err := h.svc.TransitionWorkOrder(r.Context(), c.OrgID, woID, workorders.Status(body.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"released_count": released})
}

func (h *Handler) exportReservations(w http.ResponseWriter, r *http.Request) {
	c, err := identify(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	woID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	buf, err := h.svc.ExportWorkOrder(r.Context(), c.OrgID, woID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="reservations.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	c, err := h.mutator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.svc.Cancel(r.Context(), c.OrgID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) consumeReservation(w http.ResponseWriter, r *http.Request) {
	c, err := h.mutator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.svc.Consume(r.Context(), c.OrgID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

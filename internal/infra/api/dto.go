package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/reservations"
)

type allocateBody struct {
	Mode       string          `json:"mode"`
	Quantity   decimal.Decimal `json:"quantity"`
	Selections []struct {
		LPID     uuid.UUID       `json:"lp_id"`
		Quantity decimal.Decimal `json:"quantity"`
	} `json:"selections"`
}

func decodeAllocateRequest(r *http.Request) (reservations.Request, error) {
	var body allocateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return reservations.Request{}, fmt.Errorf("%w: bad body", errBadRequest)
	}

	switch body.Mode {
	case "auto":
		return reservations.Request{Auto: true, Quantity: body.Quantity}, nil
	case "explicit":
		req := reservations.Request{}
		for _, sel := range body.Selections {
			req.Selections = append(req.Selections, reservations.Selection{
				PlateID:  sel.LPID,
				Quantity: sel.Quantity,
			})
		}
		return req, nil
	}
	return reservations.Request{}, fmt.Errorf("%w: unknown mode %q", errBadRequest, body.Mode)
}

type lpResponse struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"lp_number"`
	Quantity   decimal.Decimal `json:"quantity"`
	Available  decimal.Decimal `json:"available_qty"`
	UOM        string          `json:"uom"`
	Status     string          `json:"status"`
	LotNumber  string          `json:"lot_number"`
	ExpiryDate *string         `json:"expiry_date"`
	ExpirySoon bool            `json:"expiry_soon"`
	CreatedAt  time.Time       `json:"created_at"`
}

type searchResponse struct {
	LPs            []lpResponse    `json:"lps"`
	TotalAvailable decimal.Decimal `json:"total_available"`
}

func toSearchResponse(res *reservations.SearchResult) searchResponse {
	out := searchResponse{LPs: []lpResponse{}, TotalAvailable: res.TotalAvailable}
	for _, c := range res.Candidates {
		lp := lpResponse{
			ID:         c.ID,
			Number:     c.Number,
			Quantity:   c.Quantity,
			Available:  c.Available,
			UOM:        c.UOM,
			Status:     string(c.Status),
			LotNumber:  c.LotNumber,
			ExpirySoon: c.ExpirySoon,
			CreatedAt:  c.CreatedAt,
		}
		if c.ExpiryDate != nil {
			d := c.ExpiryDate.Format("2006-01-02")
			lp.ExpiryDate = &d
		}
		out.LPs = append(out.LPs, lp)
	}
	return out
}

type reservationResponse struct {
	ID        uuid.UUID       `json:"id"`
	LPID      uuid.UUID       `json:"lp_id"`
	LPNumber  string          `json:"lp_number"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func toReservationResponse(r reservations.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID,
		LPID:      r.PlateID,
		LPNumber:  r.PlateNumber,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

type rejectedResponse struct {
	LPID     uuid.UUID       `json:"lp_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
}

type outcomeResponse struct {
	Committed []reservationResponse `json:"committed"`
	Rejected  []rejectedResponse    `json:"rejected"`
	Shortfall decimal.Decimal       `json:"shortfall"`
	Warnings  []string              `json:"warnings"`
}

func toOutcomeResponse(out *reservations.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Committed: []reservationResponse{},
		Rejected:  []rejectedResponse{},
		Shortfall: out.Shortfall,
		Warnings:  out.Warnings,
	}
	for _, r := range out.Committed {
		resp.Committed = append(resp.Committed, toReservationResponse(r))
	}
	for _, rej := range out.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedResponse{
			LPID:     rej.PlateID,
			Quantity: rej.Quantity,
			Reason:   string(rej.Reason),
		})
	}
	return resp
}

type coverageResponse struct {
	Percent  int             `json:"percent"`
	Shortage decimal.Decimal `json:"shortage"`
	Status   string          `json:"status"`
}

type materialResponse struct {
	ID           uuid.UUID             `json:"id"`
	ProductID    uuid.UUID             `json:"product_id"`
	Name         string                `json:"material_name"`
	RequiredQty  decimal.Decimal       `json:"required_qty"`
	ReservedQty  decimal.Decimal       `json:"reserved_qty"`
	ConsumedQty  decimal.Decimal       `json:"consumed_qty"`
	UOM          string                `json:"uom"`
	RemainingQty decimal.Decimal       `json:"remaining_qty"`
	Coverage     coverageResponse      `json:"coverage"`
	Reservations []reservationResponse `json:"reservations"`
}

func toMaterialsResponse(mats []reservations.MaterialReservations) []materialResponse {
	out := make([]materialResponse, 0, len(mats))
	for _, m := range mats {
		mr := materialResponse{
			ID:           m.Material.ID,
			ProductID:    m.Material.ProductID,
			Name:         m.Material.Name,
			RequiredQty:  m.Material.RequiredQty,
			ReservedQty:  m.Material.ReservedQty,
			ConsumedQty:  m.Material.ConsumedQty,
			UOM:          m.Material.UOM,
			RemainingQty: m.RemainingQty,
			Coverage: coverageResponse{
				Percent:  m.Coverage.Percent,
				Shortage: m.Coverage.Shortage,
				Status:   string(m.Coverage.Status),
			},
			Reservations: []reservationResponse{},
		}
		for _, r := range m.Reservations {
			mr.Reservations = append(mr.Reservations, toReservationResponse(r))
		}
		out = append(out, mr)
	}
	return out
}

type shortageResponse struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Name       string          `json:"material_name"`
	Required   decimal.Decimal `json:"required_qty"`
	Reserved   decimal.Decimal `json:"reserved_qty"`
	Shortage   decimal.Decimal `json:"shortage"`
	UOM        string          `json:"uom"`
}

type reserveAllResponse struct {
	MaterialsProcessed int                `json:"materials_processed"`
	FullyReserved      int                `json:"fully_reserved"`
	PartiallyReserved  int                `json:"partially_reserved"`
	Shortages          []shortageResponse `json:"shortages"`
	Warnings           []string           `json:"warnings"`
}

func toReserveAllResponse(res *reservations.ReserveAllResult) reserveAllResponse {
	out := reserveAllResponse{
		MaterialsProcessed: res.MaterialsProcessed,
		FullyReserved:      res.FullyReserved,
		PartiallyReserved:  res.PartiallyReserved,
		Shortages:          []shortageResponse{},
		Warnings:           res.Warnings,
	}
	for _, sh := range res.Shortages {
		out.Shortages = append(out.Shortages, shortageResponse{
			MaterialID: sh.MaterialID,
			Name:       sh.Name,
			Required:   sh.Required,
			Reserved:   sh.Reserved,
			Shortage:   sh.Shortage,
			UOM:        sh.UOM,
		})
	}
	return out
}

package reservations

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ExportWorkOrder выгружает материалы заказа с активными бронями в xlsx.
func (s *Service) ExportWorkOrder(ctx context.Context, orgID, woID uuid.UUID) (*bytes.Buffer, error) {
	wo, err := s.wos.GetByID(ctx, orgID, woID)
	if err != nil {
		return nil, notFound(err)
	}
	mats, err := s.MaterialsWithReservations(ctx, orgID, woID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"wo_number",
		"material",
		"uom",
		"required_qty",
		"reserved_qty",
		"coverage",
		"lp_number",
		"reservation_qty",
		"reserved_at",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("export header: %w", err)
	}

	row := 2
	writeRow := func(vals []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
		row++
		return nil
	}

	for _, m := range mats {
		base := []interface{}{
			wo.Number,
			m.Material.Name,
			m.Material.UOM,
			m.Material.RequiredQty.String(),
			m.Material.ReservedQty.String(),
			fmt.Sprintf("%d%% (%s)", m.Coverage.Percent, m.Coverage.Status),
		}
		if len(m.Reservations) == 0 {
			if err := writeRow(append(base, "", "", "")); err != nil {
				return nil, fmt.Errorf("export row: %w", err)
			}
			continue
		}
		for _, r := range m.Reservations {
			vals := append(append([]interface{}{}, base...),
				r.PlateNumber,
				r.Quantity.String(),
				r.CreatedAt.Format("2006-01-02 15:04"),
			)
			if err := writeRow(vals); err != nil {
				return nil, fmt.Errorf("export row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export write: %w", err)
	}
	return buf, nil
}

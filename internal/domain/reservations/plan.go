package reservations

import (
	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/plates"
)

type plannedLine struct {
	Plate    plates.Candidate
	Quantity decimal.Decimal
}

// planAllocation жадно разбирает упорядоченный список кандидатов:
// с каждого берём min(свободный остаток, остаток потребности).
// Возвращает план и нехватку, если кандидатов не хватило.
func planAllocation(cands []plates.Candidate, required decimal.Decimal) ([]plannedLine, decimal.Decimal) {
	var plan []plannedLine
	remaining := required

	for _, c := range cands {
		if !remaining.IsPositive() {
			break
		}
		if !c.Available.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, c.Available)
		plan = append(plan, plannedLine{Plate: c, Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return plan, remaining
}

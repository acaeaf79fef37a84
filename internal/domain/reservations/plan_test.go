package reservations

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warelane/lp-reserve/internal/domain/plates"
)

func cand(number string, available float64) plates.Candidate {
	c := plates.Candidate{Available: decimal.NewFromFloat(available)}
	c.Number = number
	return c
}

func TestPlanAllocation(t *testing.T) {
	tests := []struct {
		name      string
		cands     []plates.Candidate
		required  float64
		wantTake  []float64
		wantShort float64
	}{
		{
			name:     "single candidate covers all",
			cands:    []plates.Candidate{cand("LP-1", 100)},
			required: 60,
			wantTake: []float64{60},
		},
		{
			name:     "split across candidates in order",
			cands:    []plates.Candidate{cand("LP-1", 50), cand("LP-2", 50), cand("LP-3", 50)},
			required: 120,
			wantTake: []float64{50, 50, 20},
		},
		{
			name:      "shortfall when candidates run out",
			cands:     []plates.Candidate{cand("LP-1", 30)},
			required:  80,
			wantTake:  []float64{30},
			wantShort: 50,
		},
		{
			name:     "drained candidates are skipped",
			cands:    []plates.Candidate{cand("LP-1", 0), cand("LP-2", -5), cand("LP-3", 40)},
			required: 40,
			wantTake: []float64{40},
		},
		{
			name:      "no candidates at all",
			cands:     nil,
			required:  25,
			wantShort: 25,
		},
		{
			name:     "stops once requirement is met",
			cands:    []plates.Candidate{cand("LP-1", 10), cand("LP-2", 90)},
			required: 10,
			wantTake: []float64{10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, short := planAllocation(tt.cands, decimal.NewFromFloat(tt.required))
			if len(plan) != len(tt.wantTake) {
				t.Fatalf("plan length = %d, want %d", len(plan), len(tt.wantTake))
			}
			total := decimal.Zero
			for i, line := range plan {
				if !line.Quantity.Equal(decimal.NewFromFloat(tt.wantTake[i])) {
					t.Errorf("line %d: qty %s, want %v", i, line.Quantity, tt.wantTake[i])
				}
				if line.Quantity.GreaterThan(line.Plate.Available) {
					t.Errorf("line %d: took more than available", i)
				}
				total = total.Add(line.Quantity)
			}
			if !short.Equal(decimal.NewFromFloat(tt.wantShort)) {
				t.Errorf("shortfall = %s, want %v", short, tt.wantShort)
			}
			if !total.Add(short).Equal(decimal.NewFromFloat(tt.required)) {
				t.Errorf("planned %s + shortfall %s != required %v", total, short, tt.required)
			}
		})
	}
}

package plates

import "sort"

// SortFEFO сортирует кандидатов: ближайший срок годности первым,
// без срока — в конец; при равенстве — по дате поступления (FIFO).
func SortFEFO(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		}
		if !a.ExpiryDate.Equal(*b.ExpiryDate) {
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// SortFIFO сортирует кандидатов по дате поступления.
func SortFIFO(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].CreatedAt.Before(cands[j].CreatedAt)
	})
}

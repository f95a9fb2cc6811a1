package pipeline

import (
	"fmt"

	"twpulse/internal/market"
)

// GapRange is one synthetic missing-value run: 0-based row indices,
// End exclusive.
type GapRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of rows the range covers.
func (g GapRange) Len() int {
	return g.End - g.Start
}

// GapPlan maps a security symbol to the row ranges that Corrupt blanks out.
type GapPlan map[string][]GapRange

// Validate rejects plans with inverted or negative ranges.
func (p GapPlan) Validate() error {
	for symbol, ranges := range p {
		for _, r := range ranges {
			if r.Start < 0 || r.End <= r.Start {
				return fmt.Errorf("invalid gap range [%d,%d) for %s", r.Start, r.End, symbol)
			}
		}
	}
	return nil
}

// AppliesTo reports whether the plan can run against the matrix: every
// referenced symbol must be a column and every range must fit inside the
// date axis. A plan that does not apply makes corruption a defined no-op
// rather than an error, which keeps short data windows working.
func (p GapPlan) AppliesTo(m *market.PriceMatrix) bool {
	if m.IsEmpty() {
		return false
	}
	for symbol, ranges := range p {
		if m.ColumnIndex(symbol) < 0 {
			return false
		}
		for _, r := range ranges {
			if r.End > m.Rows() {
				return false
			}
		}
	}
	return true
}

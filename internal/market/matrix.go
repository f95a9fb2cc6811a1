package market

import (
	"math"
	"time"
)

// Security identifies one instrument in the analysis universe: an exchange
// ticker plus the human-readable label the dashboard displays.
type Security struct {
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// Missing is the explicit missing-value marker for matrix cells.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a cell holds the missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// PriceMatrix is an ordered sequence of trading dates crossed with a fixed
// security set. Cells[i][j] holds the adjusted-close price of Securities[j]
// on Dates[i], or NaN when no price was observed. Dates ascend and columns
// follow universe order.
type PriceMatrix struct {
	Dates      []time.Time `json:"dates"`
	Securities []Security  `json:"securities"`
	Cells      [][]float64 `json:"cells"`
}

// NewPriceMatrix allocates a matrix of the given shape with every cell
// set to the missing marker.
func NewPriceMatrix(dates []time.Time, securities []Security) *PriceMatrix {
	cells := make([][]float64, len(dates))
	for i := range cells {
		row := make([]float64, len(securities))
		for j := range row {
			row[j] = Missing()
		}
		cells[i] = row
	}
	return &PriceMatrix{Dates: dates, Securities: securities, Cells: cells}
}

// Rows returns the number of trading dates.
func (m *PriceMatrix) Rows() int {
	if m == nil {
		return 0
	}
	return len(m.Dates)
}

// Cols returns the number of securities.
func (m *PriceMatrix) Cols() int {
	if m == nil {
		return 0
	}
	return len(m.Securities)
}

// IsEmpty reports whether the matrix has no observations at all.
func (m *PriceMatrix) IsEmpty() bool {
	return m.Rows() == 0 || m.Cols() == 0
}

// Clone deep-copies the matrix. Pipeline stages mutate copies only; the
// matrix handed to a stage is never changed in place.
func (m *PriceMatrix) Clone() *PriceMatrix {
	if m == nil {
		return nil
	}
	clone := &PriceMatrix{
		Dates:      make([]time.Time, len(m.Dates)),
		Securities: make([]Security, len(m.Securities)),
		Cells:      make([][]float64, len(m.Cells)),
	}
	copy(clone.Dates, m.Dates)
	copy(clone.Securities, m.Securities)
	for i, row := range m.Cells {
		clone.Cells[i] = make([]float64, len(row))
		copy(clone.Cells[i], row)
	}
	return clone
}

// ColumnIndex returns the column position of the security with the given
// symbol, or -1 when it is not part of the matrix.
func (m *PriceMatrix) ColumnIndex(symbol string) int {
	for j, s := range m.Securities {
		if s.Symbol == symbol {
			return j
		}
	}
	return -1
}

// ColumnIndexByLabel returns the column position of the security with the
// given display label, or -1 when it is not part of the matrix.
func (m *PriceMatrix) ColumnIndexByLabel(label string) int {
	for j, s := range m.Securities {
		if s.Label == label {
			return j
		}
	}
	return -1
}

// Column copies out one security's full price series in date order.
func (m *PriceMatrix) Column(j int) []float64 {
	col := make([]float64, m.Rows())
	for i := range m.Cells {
		col[i] = m.Cells[i][j]
	}
	return col
}

// Labels returns the display labels in column order.
func (m *PriceMatrix) Labels() []string {
	labels := make([]string, len(m.Securities))
	for j, s := range m.Securities {
		labels[j] = s.Label
	}
	return labels
}

package pipeline

import (
	"context"
	"log/slog"

	"twpulse/internal/market"
)

// Engine runs the corruption-and-repair demonstration over a price matrix.
type Engine struct {
	plan   GapPlan
	logger *slog.Logger
}

// NewEngine creates an engine with the given corruption plan.
func NewEngine(plan GapPlan, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		plan:   plan,
		logger: logger.With(slog.String("component", "pipeline")),
	}, nil
}

// Corrupt deep-copies the matrix and blanks out the cells named by the
// engine's gap plan. Identical input yields identical output on every
// call; there is no randomness. When the plan does not apply to the
// matrix shape the step is a defined no-op and the copy is returned
// unchanged.
func (e *Engine) Corrupt(ctx context.Context, original *market.PriceMatrix) *market.PriceMatrix {
	dirty := original.Clone()
	if dirty == nil {
		return nil
	}

	if !e.plan.AppliesTo(dirty) {
		e.logger.WarnContext(ctx, "gap plan does not fit matrix, skipping corruption",
			"rows", dirty.Rows(),
			"cols", dirty.Cols(),
		)
		return dirty
	}

	blanked := 0
	for symbol, ranges := range e.plan {
		col := dirty.ColumnIndex(symbol)
		for _, r := range ranges {
			for i := r.Start; i < r.End; i++ {
				dirty.Cells[i][col] = market.Missing()
				blanked++
			}
		}
	}

	e.logger.DebugContext(ctx, "synthetic gaps injected",
		"cells", blanked,
		"securities", len(e.plan),
	)
	return dirty
}

// Repair returns a copy of the matrix with missing cells filled column by
// column: forward-fill first, then backward-fill for leading gaps. The
// result has no missing cells except in columns that carried no
// observation at all. Repair is idempotent.
func Repair(dirty *market.PriceMatrix) *market.PriceMatrix {
	clean := dirty.Clone()
	if clean == nil {
		return nil
	}

	for j := 0; j < clean.Cols(); j++ {
		last := market.Missing()
		for i := 0; i < clean.Rows(); i++ {
			if market.IsMissing(clean.Cells[i][j]) {
				clean.Cells[i][j] = last
			} else {
				last = clean.Cells[i][j]
			}
		}

		next := market.Missing()
		for i := clean.Rows() - 1; i >= 0; i-- {
			if market.IsMissing(clean.Cells[i][j]) {
				clean.Cells[i][j] = next
			} else {
				next = clean.Cells[i][j]
			}
		}
	}
	return clean
}

// CountMissing counts missing cells per security column, keyed by display
// label. Pure; O(rows x securities).
func CountMissing(m *market.PriceMatrix) map[string]int {
	counts := make(map[string]int, m.Cols())
	for j, sec := range m.Securities {
		n := 0
		for i := 0; i < m.Rows(); i++ {
			if market.IsMissing(m.Cells[i][j]) {
				n++
			}
		}
		counts[sec.Label] = n
	}
	return counts
}

// DegenerateColumns returns the display labels of securities whose column
// holds no observation at all. Repair cannot fill them; downstream
// statistics must skip them instead of emitting NaN.
func DegenerateColumns(m *market.PriceMatrix) []string {
	var labels []string
	for j, sec := range m.Securities {
		degenerate := true
		for i := 0; i < m.Rows(); i++ {
			if !market.IsMissing(m.Cells[i][j]) {
				degenerate = false
				break
			}
		}
		if degenerate && m.Rows() > 0 {
			labels = append(labels, sec.Label)
		}
	}
	return labels
}

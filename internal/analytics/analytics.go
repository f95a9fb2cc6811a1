package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"

	apperrors "twpulse/internal/errors"
	"twpulse/internal/market"
)

// TradingDaysPerYear is the annualization factor applied to daily
// statistics.
const TradingDaysPerYear = 252

// DefaultMovingAverageWindow is the trailing window the single-security
// trend view uses.
const DefaultMovingAverageWindow = 20

// RiskReturn is one security's annualized return/volatility pair.
type RiskReturn struct {
	Label                string  `json:"label"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
}

// RankEntry is one row of the total-return ranking.
type RankEntry struct {
	Label     string  `json:"label"`
	ReturnPct float64 `json:"return_pct"`
}

// Descriptive is one security's descriptive-statistics row over the clean
// price series.
type Descriptive struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Analyzer derives summary statistics from a repaired price matrix.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With(slog.String("component", "analytics"))}
}

// SeriesReturns computes day-over-day fractional changes for one price
// series. The result is one element shorter than the input: the first
// date has no prior value. A zero divisor is a DataQualityError.
func SeriesReturns(label string, prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, nil
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			return nil, apperrors.NewDataQualityError("daily returns", label, "price is zero, return undefined")
		}
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return returns, nil
}

// DailyReturns computes per-security return series for every non-degenerate
// column, keyed by display label.
func (a *Analyzer) DailyReturns(ctx context.Context, clean *market.PriceMatrix) (map[string][]float64, error) {
	result := make(map[string][]float64, clean.Cols())
	for j, sec := range clean.Securities {
		col := clean.Column(j)
		if isDegenerate(col) {
			a.logger.WarnContext(ctx, "skipping degenerate column", "security", sec.Label)
			continue
		}
		returns, err := SeriesReturns(sec.Label, col)
		if err != nil {
			return nil, err
		}
		result[sec.Label] = returns
	}
	return result, nil
}

// Summary computes the annualized return/volatility pair per security:
// mean daily return scaled by 252 and sample standard deviation scaled by
// sqrt(252). Rows follow matrix column order.
func (a *Analyzer) Summary(ctx context.Context, clean *market.PriceMatrix) ([]RiskReturn, error) {
	returns, err := a.DailyReturns(ctx, clean)
	if err != nil {
		return nil, err
	}

	summary := make([]RiskReturn, 0, len(returns))
	for _, sec := range clean.Securities {
		series, ok := returns[sec.Label]
		if !ok {
			continue
		}
		summary = append(summary, RiskReturn{
			Label:                sec.Label,
			AnnualizedReturn:     Mean(series) * TradingDaysPerYear,
			AnnualizedVolatility: SampleStd(series) * math.Sqrt(TradingDaysPerYear),
		})
	}
	return summary, nil
}

// NormalizeSeries rescales one price series by its first value so every
// security starts at exactly 1.0.
func NormalizeSeries(label string, prices []float64) ([]float64, error) {
	if len(prices) == 0 {
		return nil, nil
	}
	first := prices[0]
	if first == 0 {
		return nil, apperrors.NewDataQualityError("normalize", label, "first price is zero")
	}
	normalized := make([]float64, len(prices))
	normalized[0] = 1.0
	for i := 1; i < len(prices); i++ {
		normalized[i] = prices[i] / first
	}
	return normalized, nil
}

// Normalized computes normalized trend series for every non-degenerate
// column, keyed by display label.
func (a *Analyzer) Normalized(ctx context.Context, clean *market.PriceMatrix) (map[string][]float64, error) {
	result := make(map[string][]float64, clean.Cols())
	for j, sec := range clean.Securities {
		col := clean.Column(j)
		if isDegenerate(col) {
			a.logger.WarnContext(ctx, "skipping degenerate column", "security", sec.Label)
			continue
		}
		series, err := NormalizeSeries(sec.Label, col)
		if err != nil {
			return nil, err
		}
		result[sec.Label] = series
	}
	return result, nil
}

// MovingAverage computes the trailing arithmetic mean over the last
// window observations. The first window-1 positions carry the missing
// marker: no partial-window average is emitted.
func MovingAverage(prices []float64, window int) []float64 {
	ma := make([]float64, len(prices))
	var sum float64
	for i := range prices {
		sum += prices[i]
		if i >= window {
			sum -= prices[i-window]
		}
		if i >= window-1 {
			ma[i] = sum / float64(window)
		} else {
			ma[i] = market.Missing()
		}
	}
	return ma
}

// TotalReturnRank ranks every non-degenerate security by
// (last/first - 1) x 100 over the observed window, descending. The sort
// is stable: ties keep original column order.
func (a *Analyzer) TotalReturnRank(ctx context.Context, clean *market.PriceMatrix) ([]RankEntry, error) {
	entries := make([]RankEntry, 0, clean.Cols())
	for j, sec := range clean.Securities {
		col := clean.Column(j)
		if isDegenerate(col) || len(col) == 0 {
			a.logger.WarnContext(ctx, "skipping degenerate column", "security", sec.Label)
			continue
		}
		if col[0] == 0 {
			return nil, apperrors.NewDataQualityError("total return", sec.Label, "first price is zero")
		}
		entries = append(entries, RankEntry{
			Label:     sec.Label,
			ReturnPct: (col[len(col)-1]/col[0] - 1) * 100,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReturnPct > entries[j].ReturnPct
	})
	return entries, nil
}

// Describe computes the descriptive-statistics table over the clean
// matrix, one row per non-degenerate security in column order.
func (a *Analyzer) Describe(ctx context.Context, clean *market.PriceMatrix) []Descriptive {
	rows := make([]Descriptive, 0, clean.Cols())
	for j, sec := range clean.Securities {
		col := clean.Column(j)
		if isDegenerate(col) || len(col) == 0 {
			a.logger.WarnContext(ctx, "skipping degenerate column", "security", sec.Label)
			continue
		}
		sorted := make([]float64, len(col))
		copy(sorted, col)
		sort.Float64s(sorted)

		rows = append(rows, Descriptive{
			Label:  sec.Label,
			Count:  len(col),
			Mean:   Mean(col),
			Std:    SampleStd(col),
			Min:    sorted[0],
			Q25:    Quantile(col, 0.25),
			Median: Quantile(col, 0.5),
			Q75:    Quantile(col, 0.75),
			Max:    sorted[len(sorted)-1],
		})
	}
	return rows
}

// isDegenerate reports whether a series has no usable observation.
func isDegenerate(col []float64) bool {
	for _, v := range col {
		if !market.IsMissing(v) {
			return false
		}
	}
	return true
}

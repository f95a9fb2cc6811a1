package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twpulse/internal/errors"
	"twpulse/internal/market"
)

// matrixFromColumns builds a clean matrix with one column per label.
func matrixFromColumns(t *testing.T, labels []string, columns [][]float64) *market.PriceMatrix {
	t.Helper()
	require.NotEmpty(t, columns)
	rows := len(columns[0])

	dates := make([]time.Time, rows)
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = day
		day = day.AddDate(0, 0, 1)
	}

	securities := make([]market.Security, len(labels))
	for j, label := range labels {
		securities[j] = market.Security{Symbol: label + ".TW", Label: label}
	}

	m := market.NewPriceMatrix(dates, securities)
	for j, col := range columns {
		require.Len(t, col, rows)
		for i, v := range col {
			m.Cells[i][j] = v
		}
	}
	return m
}

func TestSeriesReturnsLiteralScenario(t *testing.T) {
	returns, err := SeriesReturns("A", []float64{100, 102, 101, 105})
	require.NoError(t, err)
	require.Len(t, returns, 3)

	assert.InDelta(t, 0.02, returns[0], 1e-12)
	assert.InDelta(t, -0.009803921568627451, returns[1], 1e-12)
	assert.InDelta(t, 0.039603960396039604, returns[2], 1e-12)
}

func TestSeriesReturnsZeroPrice(t *testing.T) {
	_, err := SeriesReturns("A", []float64{100, 0, 105})

	var dqErr *apperrors.DataQualityError
	require.ErrorAs(t, err, &dqErr)
	assert.Equal(t, "A", dqErr.Label)
}

func TestSeriesReturnsShortSeries(t *testing.T) {
	returns, err := SeriesReturns("A", []float64{100})
	require.NoError(t, err)
	assert.Nil(t, returns)
}

func TestDailyReturnsSkipsDegenerateColumn(t *testing.T) {
	m := matrixFromColumns(t, []string{"A", "B"}, [][]float64{
		{100, 102, 101},
		{market.Missing(), market.Missing(), market.Missing()},
	})

	analyzer := NewAnalyzer(nil)
	returns, err := analyzer.DailyReturns(context.Background(), m)
	require.NoError(t, err)

	assert.Contains(t, returns, "A")
	assert.NotContains(t, returns, "B")
}

func TestSummaryAnnualization(t *testing.T) {
	m := matrixFromColumns(t, []string{"A"}, [][]float64{{100, 102, 101, 105}})

	analyzer := NewAnalyzer(nil)
	summary, err := analyzer.Summary(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, summary, 1)

	returns, err := SeriesReturns("A", []float64{100, 102, 101, 105})
	require.NoError(t, err)

	assert.Equal(t, "A", summary[0].Label)
	assert.InDelta(t, Mean(returns)*252, summary[0].AnnualizedReturn, 1e-12)
	assert.InDelta(t, SampleStd(returns)*math.Sqrt(252), summary[0].AnnualizedVolatility, 1e-12)
}

func TestNormalizeSeriesInvariant(t *testing.T) {
	series, err := NormalizeSeries("A", []float64{80, 88, 72})
	require.NoError(t, err)

	// The first value is exactly 1.0, not approximately.
	assert.Equal(t, 1.0, series[0])
	assert.InDelta(t, 1.1, series[1], 1e-12)
	assert.InDelta(t, 0.9, series[2], 1e-12)
}

func TestNormalizeSeriesZeroFirstPrice(t *testing.T) {
	_, err := NormalizeSeries("A", []float64{0, 88})

	var dqErr *apperrors.DataQualityError
	require.ErrorAs(t, err, &dqErr)
	assert.Equal(t, "normalize", dqErr.Op)
}

func TestNormalizedMatrix(t *testing.T) {
	m := matrixFromColumns(t, []string{"A", "B"}, [][]float64{
		{100, 110},
		{50, 45},
	})

	analyzer := NewAnalyzer(nil)
	normalized, err := analyzer.Normalized(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 1.0, normalized["A"][0])
	assert.Equal(t, 1.0, normalized["B"][0])
	assert.InDelta(t, 1.1, normalized["A"][1], 1e-12)
	assert.InDelta(t, 0.9, normalized["B"][1], 1e-12)
}

func TestMovingAverageBoundary(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = float64(i + 1)
	}

	ma := MovingAverage(prices, 20)
	require.Len(t, ma, 25)

	// No partial-window average for the first window-1 positions.
	for i := 0; i < 19; i++ {
		assert.True(t, market.IsMissing(ma[i]), "position %d", i)
	}

	// Position 19 is the mean of positions 0-19.
	assert.InDelta(t, Mean(prices[:20]), ma[19], 1e-12)
	assert.InDelta(t, Mean(prices[5:25]), ma[24], 1e-12)
}

func TestMovingAverageShorterThanWindow(t *testing.T) {
	ma := MovingAverage([]float64{1, 2, 3}, 20)
	require.Len(t, ma, 3)
	for i := range ma {
		assert.True(t, market.IsMissing(ma[i]))
	}
}

func TestTotalReturnRank(t *testing.T) {
	m := matrixFromColumns(t, []string{"A", "B", "C"}, [][]float64{
		{100, 102, 101, 105}, // +5%
		{200, 190, 180, 170}, // -15%
		{50, 55, 60, 56},     // +12%
	})

	analyzer := NewAnalyzer(nil)
	ranking, err := analyzer.TotalReturnRank(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, ranking, 3)

	assert.Equal(t, "C", ranking[0].Label)
	assert.InDelta(t, 12.0, ranking[0].ReturnPct, 1e-12)
	assert.Equal(t, "A", ranking[1].Label)
	assert.InDelta(t, 5.0, ranking[1].ReturnPct, 1e-12)
	assert.Equal(t, "B", ranking[2].Label)
	assert.InDelta(t, -15.0, ranking[2].ReturnPct, 1e-12)

	// Sorted descending throughout.
	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].ReturnPct, ranking[i].ReturnPct)
	}
}

func TestTotalReturnRankStableTies(t *testing.T) {
	m := matrixFromColumns(t, []string{"A", "B", "C"}, [][]float64{
		{100, 105}, // +5%
		{200, 210}, // +5%
		{50, 55},   // +10%
	})

	analyzer := NewAnalyzer(nil)
	ranking, err := analyzer.TotalReturnRank(context.Background(), m)
	require.NoError(t, err)

	// Ties keep original column order: A before B.
	assert.Equal(t, []string{"C", "A", "B"}, []string{ranking[0].Label, ranking[1].Label, ranking[2].Label})
}

func TestTotalReturnRankZeroFirstPrice(t *testing.T) {
	m := matrixFromColumns(t, []string{"A"}, [][]float64{{0, 105}})

	analyzer := NewAnalyzer(nil)
	_, err := analyzer.TotalReturnRank(context.Background(), m)

	var dqErr *apperrors.DataQualityError
	assert.ErrorAs(t, err, &dqErr)
}

func TestDescribe(t *testing.T) {
	m := matrixFromColumns(t, []string{"A", "B"}, [][]float64{
		{4, 1, 3, 2},
		{market.Missing(), market.Missing(), market.Missing(), market.Missing()},
	})

	analyzer := NewAnalyzer(nil)
	rows := analyzer.Describe(context.Background(), m)
	require.Len(t, rows, 1, "degenerate column is skipped")

	row := rows[0]
	assert.Equal(t, "A", row.Label)
	assert.Equal(t, 4, row.Count)
	assert.InDelta(t, 2.5, row.Mean, 1e-12)
	assert.InDelta(t, 1.0, row.Min, 1e-12)
	assert.InDelta(t, 1.75, row.Q25, 1e-12)
	assert.InDelta(t, 2.5, row.Median, 1e-12)
	assert.InDelta(t, 3.25, row.Q75, 1e-12)
	assert.InDelta(t, 4.0, row.Max, 1e-12)
	assert.InDelta(t, SampleStd([]float64{4, 1, 3, 2}), row.Std, 1e-12)
}

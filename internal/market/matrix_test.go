package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUniverse() []Security {
	return []Security{
		{Symbol: "2330.TW", Label: "台積電"},
		{Symbol: "2317.TW", Label: "鴻海"},
	}
}

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = day
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func TestNewPriceMatrixAllMissing(t *testing.T) {
	m := NewPriceMatrix(testDates(3), testUniverse())

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.False(t, m.IsEmpty())

	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			assert.True(t, IsMissing(m.Cells[i][j]), "cell %d,%d", i, j)
		}
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(Missing()))
	assert.False(t, IsMissing(0))
	assert.False(t, IsMissing(123.45))
}

func TestCloneIsDeep(t *testing.T) {
	m := NewPriceMatrix(testDates(2), testUniverse())
	m.Cells[0][0] = 500
	m.Cells[1][1] = 101.5

	clone := m.Clone()
	require.Equal(t, m.Rows(), clone.Rows())
	require.Equal(t, m.Cols(), clone.Cols())
	assert.Equal(t, 500.0, clone.Cells[0][0])

	clone.Cells[0][0] = 999
	clone.Securities[0].Label = "changed"
	clone.Dates[0] = clone.Dates[0].AddDate(1, 0, 0)

	assert.Equal(t, 500.0, m.Cells[0][0])
	assert.Equal(t, "台積電", m.Securities[0].Label)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), m.Dates[0])
}

func TestCloneNil(t *testing.T) {
	var m *PriceMatrix
	assert.Nil(t, m.Clone())
	assert.True(t, m.IsEmpty())
}

func TestColumnLookup(t *testing.T) {
	m := NewPriceMatrix(testDates(2), testUniverse())

	assert.Equal(t, 0, m.ColumnIndex("2330.TW"))
	assert.Equal(t, 1, m.ColumnIndex("2317.TW"))
	assert.Equal(t, -1, m.ColumnIndex("0000.TW"))

	assert.Equal(t, 1, m.ColumnIndexByLabel("鴻海"))
	assert.Equal(t, -1, m.ColumnIndexByLabel("不存在"))
}

func TestColumnCopiesSeries(t *testing.T) {
	m := NewPriceMatrix(testDates(3), testUniverse())
	m.Cells[0][1] = 100
	m.Cells[1][1] = 101
	m.Cells[2][1] = 102

	col := m.Column(1)
	require.Equal(t, []float64{100, 101, 102}, col)

	col[0] = 0
	assert.Equal(t, 100.0, m.Cells[0][1])
}

func TestLabels(t *testing.T) {
	m := NewPriceMatrix(nil, testUniverse())
	assert.Equal(t, []string{"台積電", "鴻海"}, m.Labels())
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twpulse/internal/analytics"
	"twpulse/internal/cache"
	apperrors "twpulse/internal/errors"
	"twpulse/internal/market"
	"twpulse/internal/pipeline"
)

// fakeSource serves a canned matrix and counts fetches.
type fakeSource struct {
	matrix *market.PriceMatrix
	err    error
	calls  int32
}

func (f *fakeSource) FetchMatrix(ctx context.Context, universe []market.Security, start time.Time) (*market.PriceMatrix, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.matrix.Clone(), nil
}

// fakeHub records broadcast event types.
type fakeHub struct {
	events []string
}

func (f *fakeHub) Broadcast(eventType string, payload interface{}) {
	f.events = append(f.events, eventType)
}

func serviceUniverse() []market.Security {
	return []market.Security{
		{Symbol: "2330.TW", Label: "台積電"},
		{Symbol: "2317.TW", Label: "鴻海"},
		{Symbol: "2454.TW", Label: "聯發科"},
	}
}

func serviceMatrix(rows int) *market.PriceMatrix {
	dates := make([]time.Time, rows)
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = day
		day = day.AddDate(0, 0, 1)
	}
	m := market.NewPriceMatrix(dates, serviceUniverse())
	for i := 0; i < rows; i++ {
		for j := 0; j < 3; j++ {
			m.Cells[i][j] = 100 + float64(i)*(1+float64(j))
		}
	}
	return m
}

func newTestService(t *testing.T, source MatrixSource, hub Broadcaster) *DashboardService {
	t.Helper()

	plan := pipeline.GapPlan{
		"2330.TW": {{Start: 0, End: 5}},
		"2317.TW": {{Start: 10, End: 13}},
		"2454.TW": {{Start: 20, End: 21}},
	}
	engine, err := pipeline.NewEngine(plan, nil)
	require.NoError(t, err)

	return NewDashboardService(DashboardServiceOptions{
		Source:              source,
		Cache:               cache.New(time.Minute, nil),
		Engine:              engine,
		Analyzer:            analytics.NewAnalyzer(nil),
		Hub:                 hub,
		Universe:            serviceUniverse(),
		Start:               time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		MovingAverageWindow: 20,
	}, nil)
}

func TestSnapshot(t *testing.T) {
	source := &fakeSource{matrix: serviceMatrix(30)}
	svc := newTestService(t, source, nil)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "2023-01-01", snap.StartDate)
	assert.Len(t, snap.Dates, 30)
	assert.Equal(t, []string{"台積電", "鴻海", "聯發科"}, snap.Labels)

	// Stage counts: zero missing before, exactly the gap plan in dirty,
	// zero after repair.
	assert.Equal(t, 0, snap.Missing.Original["台積電"])
	assert.Equal(t, 5, snap.Missing.Dirty["台積電"])
	assert.Equal(t, 3, snap.Missing.Dirty["鴻海"])
	assert.Equal(t, 1, snap.Missing.Dirty["聯發科"])
	assert.Equal(t, 0, snap.Missing.Clean["台積電"])

	assert.Empty(t, snap.Degenerate)
	assert.Len(t, snap.RiskReturn, 3)
	assert.Len(t, snap.Describe, 3)
	assert.Len(t, snap.Ranking, 3)

	// Every normalized series starts at exactly 1.0.
	for label, series := range snap.Normalized {
		require.NotEmpty(t, series, label)
		assert.Equal(t, 1.0, series[0], label)
	}

	// Steeper slope means higher total return: 聯發科 > 鴻海 > 台積電.
	assert.Equal(t, "聯發科", snap.Ranking[0].Label)
	assert.Equal(t, "台積電", snap.Ranking[2].Label)
}

func TestSnapshotUsesCache(t *testing.T) {
	source := &fakeSource{matrix: serviceMatrix(30)}
	svc := newTestService(t, source, nil)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&source.calls))
}

func TestSnapshotAcquisitionFailure(t *testing.T) {
	source := &fakeSource{err: apperrors.NewAcquisitionError("yahoo", nil)}
	svc := newTestService(t, source, nil)

	_, err := svc.Snapshot(context.Background())

	var acqErr *apperrors.AcquisitionError
	assert.ErrorAs(t, err, &acqErr)
}

func TestRefreshInvalidatesAndBroadcasts(t *testing.T) {
	source := &fakeSource{matrix: serviceMatrix(30)}
	hub := &fakeHub{}
	svc := newTestService(t, source, hub)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	snap, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap)

	// Refresh bypasses the memoized load.
	assert.EqualValues(t, 2, atomic.LoadInt32(&source.calls))
	assert.Equal(t, []string{"refresh:started", "refresh:complete"}, hub.events)
}

func TestRefreshFailureBroadcasts(t *testing.T) {
	source := &fakeSource{err: apperrors.NewAcquisitionError("yahoo", nil)}
	hub := &fakeHub{}
	svc := newTestService(t, source, hub)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"refresh:started", "refresh:failed"}, hub.events)
}

func TestSeries(t *testing.T) {
	source := &fakeSource{matrix: serviceMatrix(30)}
	svc := newTestService(t, source, nil)
	ctx := context.Background()

	t.Run("by symbol", func(t *testing.T) {
		series, err := svc.Series(ctx, "2330.TW", 0)
		require.NoError(t, err)

		assert.Equal(t, "台積電", series.Label)
		assert.Equal(t, 20, series.Window, "zero window falls back to the configured default")
		assert.Len(t, series.Prices, 30)
		assert.Len(t, series.MovingAverage, 30)
		assert.True(t, market.IsMissing(series.MovingAverage[18]))
		assert.False(t, market.IsMissing(series.MovingAverage[19]))
	})

	t.Run("by label", func(t *testing.T) {
		series, err := svc.Series(ctx, "鴻海", 5)
		require.NoError(t, err)
		assert.Equal(t, "2317.TW", series.Symbol)
		assert.Equal(t, 5, series.Window)
	})

	t.Run("unknown security", func(t *testing.T) {
		_, err := svc.Series(ctx, "0000.TW", 0)
		assert.ErrorIs(t, err, ErrUnknownSecurity)
	})
}

func TestSeriesDegenerateColumn(t *testing.T) {
	m := serviceMatrix(30)
	for i := 0; i < 30; i++ {
		m.Cells[i][1] = market.Missing()
	}
	svc := newTestService(t, &fakeSource{matrix: m}, nil)

	_, err := svc.Series(context.Background(), "2317.TW", 0)

	var degErr *apperrors.DegenerateColumnError
	require.ErrorAs(t, err, &degErr)
	assert.Equal(t, []string{"鴻海"}, degErr.Labels)
}

func TestNormalized(t *testing.T) {
	svc := newTestService(t, &fakeSource{matrix: serviceMatrix(30)}, nil)

	normalized, err := svc.Normalized(context.Background())
	require.NoError(t, err)

	assert.Len(t, normalized.Dates, 30)
	assert.Len(t, normalized.Series, 3)
}

func TestExportWorkbook(t *testing.T) {
	svc := newTestService(t, &fakeSource{matrix: serviceMatrix(30)}, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportWorkbook(context.Background(), &buf))
	assert.NotZero(t, buf.Len())
}

func TestFloatSeriesMarshalJSON(t *testing.T) {
	series := FloatSeries{1.5, market.Missing(), 2}

	data, err := json.Marshal(series)
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, 2]`, string(data))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"twpulse/internal/analytics"
	"twpulse/internal/cache"
	apperrors "twpulse/internal/errors"
	"twpulse/internal/exporter"
	"twpulse/internal/infrastructure"
	"twpulse/internal/market"
	"twpulse/internal/pipeline"
	ws "twpulse/internal/websocket"
)

// ErrUnknownSecurity is returned when a requested symbol or label is not
// part of the configured universe.
var ErrUnknownSecurity = errors.New("unknown security")

// MatrixSource acquires the raw price matrix. Implemented by
// market.Client; faked in tests.
type MatrixSource interface {
	FetchMatrix(ctx context.Context, universe []market.Security, start time.Time) (*market.PriceMatrix, error)
}

// Broadcaster pushes refresh-lifecycle events to connected dashboards.
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// DashboardService orchestrates one analysis session end to end.
type DashboardService struct {
	source   MatrixSource
	cache    *cache.MatrixCache
	engine   *pipeline.Engine
	analyzer *analytics.Analyzer
	hub      Broadcaster
	metrics  *infrastructure.Metrics

	universe  []market.Security
	start     time.Time
	startDate string
	maWindow  int

	logger *slog.Logger
}

// DashboardServiceOptions wires the service's collaborators.
type DashboardServiceOptions struct {
	Source   MatrixSource
	Cache    *cache.MatrixCache
	Engine   *pipeline.Engine
	Analyzer *analytics.Analyzer
	Hub      Broadcaster
	Metrics  *infrastructure.Metrics

	Universe            []market.Security
	Start               time.Time
	MovingAverageWindow int
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(opts DashboardServiceOptions, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MovingAverageWindow <= 0 {
		opts.MovingAverageWindow = analytics.DefaultMovingAverageWindow
	}
	return &DashboardService{
		source:    opts.Source,
		cache:     opts.Cache,
		engine:    opts.Engine,
		analyzer:  opts.Analyzer,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		universe:  opts.Universe,
		start:     opts.Start,
		startDate: opts.Start.Format("2006-01-02"),
		maWindow:  opts.MovingAverageWindow,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
}

// cacheKey identifies the memoized load by its acquisition parameters.
func (s *DashboardService) cacheKey() string {
	symbols := make([]string, len(s.universe))
	for i, sec := range s.universe {
		symbols[i] = sec.Symbol
	}
	return s.startDate + "|" + strings.Join(symbols, ",")
}

// load acquires the original matrix through the cache.
func (s *DashboardService) load(ctx context.Context) (*market.PriceMatrix, error) {
	return s.cache.GetOrLoad(ctx, s.cacheKey(), func(ctx context.Context) (*market.PriceMatrix, error) {
		began := time.Now()
		m, err := s.source.FetchMatrix(ctx, s.universe, s.start)
		if s.metrics != nil {
			s.metrics.AcquisitionSeconds.Observe(time.Since(began).Seconds())
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			s.metrics.AcquisitionsTotal.WithLabelValues(outcome).Inc()
		}
		return m, err
	})
}

// stages runs the three-stage pipeline: original, dirty, clean.
func (s *DashboardService) stages(ctx context.Context) (original, dirty, clean *market.PriceMatrix, err error) {
	original, err = s.load(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load price matrix: %w", err)
	}
	dirty = s.engine.Corrupt(ctx, original)
	clean = pipeline.Repair(dirty)
	return original, dirty, clean, nil
}

// Snapshot computes the full dashboard payload.
func (s *DashboardService) Snapshot(ctx context.Context) (*Snapshot, error) {
	original, dirty, clean, err := s.stages(ctx)
	if err != nil {
		s.countPipelineRun("failure")
		return nil, err
	}

	summary, err := s.analyzer.Summary(ctx, clean)
	if err != nil {
		s.countPipelineRun("failure")
		return nil, err
	}
	normalized, err := s.analyzer.Normalized(ctx, clean)
	if err != nil {
		s.countPipelineRun("failure")
		return nil, err
	}
	ranking, err := s.analyzer.TotalReturnRank(ctx, clean)
	if err != nil {
		s.countPipelineRun("failure")
		return nil, err
	}

	snap := &Snapshot{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		StartDate:   s.startDate,
		Dates:       formatDates(clean.Dates),
		Labels:      clean.Labels(),
		Missing: MissingSummary{
			Original: pipeline.CountMissing(original),
			Dirty:    pipeline.CountMissing(dirty),
			Clean:    pipeline.CountMissing(clean),
		},
		Degenerate: pipeline.DegenerateColumns(original),
		RiskReturn: summary,
		Describe:   s.analyzer.Describe(ctx, clean),
		Normalized: toFloatSeries(normalized),
		Ranking:    ranking,
	}

	s.countPipelineRun("success")
	s.logger.InfoContext(ctx, "snapshot computed",
		"rows", clean.Rows(),
		"securities", clean.Cols(),
		"degenerate", len(snap.Degenerate),
	)
	return snap, nil
}

// Missing computes the three-stage missing-count tables only.
func (s *DashboardService) Missing(ctx context.Context) (*MissingSummary, []string, error) {
	original, dirty, clean, err := s.stages(ctx)
	if err != nil {
		return nil, nil, err
	}
	summary := &MissingSummary{
		Original: pipeline.CountMissing(original),
		Dirty:    pipeline.CountMissing(dirty),
		Clean:    pipeline.CountMissing(clean),
	}
	return summary, pipeline.DegenerateColumns(original), nil
}

// RiskReturn computes the annualized return/volatility table.
func (s *DashboardService) RiskReturn(ctx context.Context) ([]analytics.RiskReturn, error) {
	_, _, clean, err := s.stages(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Summary(ctx, clean)
}

// Describe computes the descriptive-statistics table.
func (s *DashboardService) Describe(ctx context.Context) ([]analytics.Descriptive, error) {
	_, _, clean, err := s.stages(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Describe(ctx, clean), nil
}

// Ranking computes the total-return ranking.
func (s *DashboardService) Ranking(ctx context.Context) ([]analytics.RankEntry, error) {
	_, _, clean, err := s.stages(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.TotalReturnRank(ctx, clean)
}

// Normalized computes the all-securities normalized trend view.
func (s *DashboardService) Normalized(ctx context.Context) (*NormalizedSeries, error) {
	_, _, clean, err := s.stages(ctx)
	if err != nil {
		return nil, err
	}
	normalized, err := s.analyzer.Normalized(ctx, clean)
	if err != nil {
		return nil, err
	}
	return &NormalizedSeries{
		Dates:  formatDates(clean.Dates),
		Series: toFloatSeries(normalized),
	}, nil
}

// Series computes the single-security trend view with a trailing moving
// average. The security may be addressed by ticker symbol or display
// label; window falls back to the configured default when zero.
func (s *DashboardService) Series(ctx context.Context, security string, window int) (*SecuritySeries, error) {
	if window <= 0 {
		window = s.maWindow
	}

	_, _, clean, err := s.stages(ctx)
	if err != nil {
		return nil, err
	}

	col := clean.ColumnIndex(security)
	if col < 0 {
		col = clean.ColumnIndexByLabel(security)
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSecurity, security)
	}

	sec := clean.Securities[col]
	prices := clean.Column(col)
	if isAllMissing(prices) {
		return nil, &apperrors.DegenerateColumnError{Labels: []string{sec.Label}}
	}

	return &SecuritySeries{
		Symbol:        sec.Symbol,
		Label:         sec.Label,
		Window:        window,
		Dates:         formatDates(clean.Dates),
		Prices:        FloatSeries(prices),
		MovingAverage: FloatSeries(analytics.MovingAverage(prices, window)),
	}, nil
}

// Refresh invalidates the memoized load and recomputes the snapshot,
// broadcasting lifecycle events to connected dashboards.
func (s *DashboardService) Refresh(ctx context.Context) (*Snapshot, error) {
	s.broadcast(ws.TypeRefreshStarted, map[string]string{"start_date": s.startDate})

	s.cache.Invalidate(s.cacheKey())
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.broadcast(ws.TypeRefreshFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	s.broadcast(ws.TypeRefreshComplete, map[string]interface{}{
		"snapshot_id":  snap.ID,
		"generated_at": snap.GeneratedAt,
	})
	return snap, nil
}

// ExportWorkbook streams the computed tables as an xlsx workbook.
func (s *DashboardService) ExportWorkbook(ctx context.Context, w io.Writer) error {
	original, dirty, clean, err := s.stages(ctx)
	if err != nil {
		return err
	}
	summary, err := s.analyzer.Summary(ctx, clean)
	if err != nil {
		return err
	}
	ranking, err := s.analyzer.TotalReturnRank(ctx, clean)
	if err != nil {
		return err
	}

	wb := exporter.BuildWorkbook(s.startDate, original, dirty, clean,
		summary, s.analyzer.Describe(ctx, clean), ranking)
	return exporter.Write(w, wb)
}

func (s *DashboardService) broadcast(eventType string, payload interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(eventType, payload)
	}
}

func (s *DashboardService) countPipelineRun(outcome string) {
	if s.metrics != nil {
		s.metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func toFloatSeries(in map[string][]float64) map[string]FloatSeries {
	out := make(map[string]FloatSeries, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isAllMissing(xs []float64) bool {
	for _, v := range xs {
		if !market.IsMissing(v) {
			return false
		}
	}
	return true
}

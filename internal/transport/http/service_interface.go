package http

import (
	"context"
	"io"

	"twpulse/internal/analytics"
	"twpulse/internal/services"
)

// DashboardServiceInterface defines the operations the handlers need
// from the dashboard service.
type DashboardServiceInterface interface {
	Snapshot(ctx context.Context) (*services.Snapshot, error)
	Missing(ctx context.Context) (*services.MissingSummary, []string, error)
	RiskReturn(ctx context.Context) ([]analytics.RiskReturn, error)
	Describe(ctx context.Context) ([]analytics.Descriptive, error)
	Normalized(ctx context.Context) (*services.NormalizedSeries, error)
	Series(ctx context.Context, security string, window int) (*services.SecuritySeries, error)
	Ranking(ctx context.Context) ([]analytics.RankEntry, error)
	Refresh(ctx context.Context) (*services.Snapshot, error)
	ExportWorkbook(ctx context.Context, w io.Writer) error
}

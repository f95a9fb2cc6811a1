package services

import (
	"math"
	"strconv"
	"time"

	"twpulse/internal/analytics"
)

// FloatSeries marshals NaN as JSON null so series with undefined leading
// positions (moving averages) survive encoding.
type FloatSeries []float64

// MarshalJSON implements json.Marshaler.
func (s FloatSeries) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(s)*8+2)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
		} else {
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
	}
	return append(buf, ']'), nil
}

// MissingSummary carries the per-security missing-cell counts of the
// three pipeline stages.
type MissingSummary struct {
	Original map[string]int `json:"original"`
	Dirty    map[string]int `json:"dirty"`
	Clean    map[string]int `json:"clean"`
}

// Snapshot is the full dashboard payload for one analysis session.
type Snapshot struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	StartDate   string    `json:"start_date"`

	Dates  []string `json:"dates"`
	Labels []string `json:"labels"`

	Missing    MissingSummary `json:"missing"`
	Degenerate []string       `json:"degenerate_securities,omitempty"`

	RiskReturn []analytics.RiskReturn  `json:"risk_return"`
	Describe   []analytics.Descriptive `json:"describe"`
	Normalized map[string]FloatSeries  `json:"normalized"`
	Ranking    []analytics.RankEntry   `json:"ranking"`
}

// SecuritySeries is the single-security trend view: prices plus the
// trailing moving average.
type SecuritySeries struct {
	Symbol        string      `json:"symbol"`
	Label         string      `json:"label"`
	Window        int         `json:"window"`
	Dates         []string    `json:"dates"`
	Prices        FloatSeries `json:"prices"`
	MovingAverage FloatSeries `json:"moving_average"`
}

// NormalizedSeries is the all-securities trend view, every series
// rescaled to start at 1.0.
type NormalizedSeries struct {
	Dates  []string               `json:"dates"`
	Series map[string]FloatSeries `json:"series"`
}

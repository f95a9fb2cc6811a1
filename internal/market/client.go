package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "twpulse/internal/errors"
)

// ClientOptions configures the chart API client.
type ClientOptions struct {
	// Endpoint is the base URL of the Yahoo chart API, without trailing slash.
	Endpoint string
	// RequestTimeout bounds a single symbol fetch.
	RequestTimeout time.Duration
	// RateLimitRPS and RateBurst pace outgoing requests.
	RateLimitRPS float64
	RateBurst    int
	// MaxConcurrent bounds in-flight symbol fetches.
	MaxConcurrent int
}

// Client fetches daily adjusted-close series from the Yahoo Finance v8
// chart API. It is safe for concurrent use.
type Client struct {
	endpoint      string
	httpClient    *http.Client
	limiter       *rate.Limiter
	maxConcurrent int
	logger        *slog.Logger
}

// NewClient creates a chart API client.
func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 4
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Client{
		endpoint:      opts.Endpoint,
		httpClient:    &http.Client{Timeout: opts.RequestTimeout},
		limiter:       rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateBurst),
		maxConcurrent: opts.MaxConcurrent,
		logger:        logger.With(slog.String("component", "market_client")),
	}
}

// chartResponse mirrors the subset of the v8 chart payload the acquirer
// needs. Price arrays use pointers because the API encodes non-trading
// slots as nulls.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Timezone string `json:"timezone"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// observation is one (date, price) point of a single security's series.
type observation struct {
	day   time.Time
	price float64
}

// FetchMatrix downloads the adjusted-close history of every security in the
// universe from start to now and assembles the raw price matrix, columns
// relabeled from ticker to display label.
//
// A symbol that fails to download leaves its column entirely missing; only
// a universe that yields no observations at all is an AcquisitionError.
func (c *Client) FetchMatrix(ctx context.Context, universe []Security, start time.Time) (*PriceMatrix, error) {
	if len(universe) == 0 {
		return nil, apperrors.NewAcquisitionError("yahoo", fmt.Errorf("empty universe"))
	}

	began := time.Now()
	c.logger.InfoContext(ctx, "fetching price matrix",
		"securities", len(universe),
		"start", start.Format("2006-01-02"),
	)

	series := make(map[string][]observation, len(universe))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for _, sec := range universe {
		g.Go(func() error {
			obs, err := c.fetchSeries(gctx, sec.Symbol, start)
			if err != nil {
				// One unreachable symbol becomes a degenerate column
				// downstream; it does not abort the session.
				c.logger.WarnContext(gctx, "symbol fetch failed",
					"symbol", sec.Symbol,
					"error", err,
				)
				return nil
			}
			mu.Lock()
			series[sec.Symbol] = obs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewAcquisitionError("yahoo", err)
	}

	matrix := assembleMatrix(universe, series)
	if matrix.IsEmpty() {
		return nil, apperrors.NewAcquisitionError("yahoo", nil)
	}

	c.logger.InfoContext(ctx, "price matrix assembled",
		"rows", matrix.Rows(),
		"cols", matrix.Cols(),
		"elapsed", time.Since(began).Round(time.Millisecond).String(),
	)
	return matrix, nil
}

// fetchSeries downloads one symbol's daily adjusted-close observations.
func (c *Client) fetchSeries(ctx context.Context, symbol string, start time.Time) ([]observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", time.Now().Unix()))
	q.Set("events", "div|split")
	q.Set("includeAdjustedClose", "true")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.endpoint, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "twpulse/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", symbol, err)
	}

	return parseChart(symbol, body)
}

// parseChart extracts the adjusted-close series from a chart payload,
// falling back to raw close when the adjclose indicator is absent.
func parseChart(symbol string, body []byte) ([]observation, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart response for %s: %w", symbol, err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s - %s",
			symbol, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("no result for %s", symbol)
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("no timestamps for %s", symbol)
	}

	var prices []*float64
	switch {
	case len(result.Indicators.Adjclose) > 0 && len(result.Indicators.Adjclose[0].Adjclose) > 0:
		prices = result.Indicators.Adjclose[0].Adjclose
	case len(result.Indicators.Quote) > 0:
		prices = result.Indicators.Quote[0].Close
	default:
		return nil, fmt.Errorf("no price indicators for %s", symbol)
	}

	if len(prices) != len(result.Timestamp) {
		return nil, fmt.Errorf("misaligned series for %s: %d timestamps, %d prices",
			symbol, len(result.Timestamp), len(prices))
	}

	obs := make([]observation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if prices[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		obs = append(obs, observation{day: day, price: *prices[i]})
	}
	return obs, nil
}

// assembleMatrix aligns per-symbol series on the union of their trading
// dates, ascending, and lays them out in universe column order.
func assembleMatrix(universe []Security, series map[string][]observation) *PriceMatrix {
	daySet := make(map[time.Time]struct{})
	for _, obs := range series {
		for _, o := range obs {
			daySet[o.day] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowOf := make(map[time.Time]int, len(dates))
	for i, day := range dates {
		rowOf[day] = i
	}

	matrix := NewPriceMatrix(dates, universe)
	for j, sec := range universe {
		for _, o := range series[sec.Symbol] {
			matrix.Cells[rowOf[o.day]][j] = o.price
		}
	}
	return matrix
}

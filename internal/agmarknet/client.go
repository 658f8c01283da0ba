// Package agmarknet implements the client for the data.gov.in daily mandi
// price resource. The API is rate limited, so all requests flow through a
// serialized limiter that enforces a minimum inter-request delay process-wide.
package agmarknet

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shivas758/agriguru-sub003/internal/config"
	"github.com/shivas758/agriguru-sub003/internal/market"
)

// FetchResult is the outcome of a fetch. Transport failures after exhausting
// retries surface here as Success=false with an error message; callers must
// check the flag rather than expect an error value.
type FetchResult struct {
	Success bool                 `json:"success"`
	Records []market.PriceRecord `json:"records"`
	Total   int                  `json:"total"`
	Err     string               `json:"error,omitempty"`
}

// Client talks to the Agmarknet price resource with throttling, retries, and
// response-to-canonical-record transformation.
type Client struct {
	httpClient *http.Client
	cfg        config.AgmarknetConfig
	limiter    *rate.Limiter
	now        func() time.Time

	// backoffUnit scales retry backoff (attempt × unit). Overridden in tests.
	backoffUnit time.Duration
}

// NewClient creates a Client from configuration, applying defaults for any
// zero values.
func NewClient(cfg config.AgmarknetConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.RequestDelayMS <= 0 {
		cfg.RequestDelayMS = 200
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 15
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 100000
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.data.gov.in/resource"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		cfg:        cfg,
		// Burst 1 serializes callers: each waits until the delay has elapsed
		// since the previous request began, regardless of concurrency.
		limiter:     rate.NewLimiter(rate.Every(cfg.RequestDelay()), 1),
		now:         time.Now,
		backoffUnit: time.Second,
	}
}

type apiResponse struct {
	Records []map[string]any `json:"records"`
	Total   int              `json:"total"`
	Count   int              `json:"count"`
}

// FetchPage fetches a single page of records for a date.
func (c *Client) FetchPage(ctx context.Context, date time.Time, filters Filters, limit, offset int) FetchResult {
	raws, total, err := c.fetchRaw(ctx, date, filters, limit, offset)
	if err != nil {
		return FetchResult{Success: false, Records: []market.PriceRecord{}, Err: err.Error()}
	}
	records := market.TransformBatch(raws, c.now().UTC())
	return FetchResult{Success: true, Records: records, Total: total}
}

// FetchAllForDate fetches every page for a date, advancing an offset cursor
// until a short page signals end of data or the hard record ceiling is hit.
func (c *Client) FetchAllForDate(ctx context.Context, date time.Time, filters Filters) FetchResult {
	log := zap.L().With(
		zap.String("component", "agmarknet.client"),
		zap.String("date", date.Format("2006-01-02")),
	)

	var all []map[string]any
	offset := 0

	for {
		raws, _, err := c.fetchRaw(ctx, date, filters, c.cfg.PageSize, offset)
		if err != nil {
			return FetchResult{Success: false, Records: []market.PriceRecord{}, Err: err.Error()}
		}

		all = append(all, raws...)

		if len(raws) < c.cfg.PageSize {
			break
		}

		offset += c.cfg.PageSize
		if offset >= c.cfg.MaxRecords {
			// Treated as end-of-data, not an error: the ceiling bounds
			// worst-case stall duration on a runaway cursor.
			log.Warn("record ceiling reached, stopping pagination",
				zap.Int("ceiling", c.cfg.MaxRecords),
				zap.Int("fetched", len(all)),
			)
			break
		}
	}

	records := market.TransformBatch(all, c.now().UTC())
	log.Debug("fetch complete",
		zap.Int("raw", len(all)),
		zap.Int("valid", len(records)),
	)
	return FetchResult{Success: true, Records: records, Total: len(all)}
}

// FetchByCommodities issues one full fetch per commodity sequentially and
// concatenates the results. Individual failures are logged and skipped; the
// aggregate fails only if every sub-fetch failed.
func (c *Client) FetchByCommodities(ctx context.Context, date time.Time, commodities []string) FetchResult {
	return c.fetchByFilterValues(ctx, date, commodities, func(v string) Filters {
		return Filters{Commodity: v}
	})
}

// FetchByStates issues one full fetch per state sequentially and concatenates
// the results.
func (c *Client) FetchByStates(ctx context.Context, date time.Time, states []string) FetchResult {
	return c.fetchByFilterValues(ctx, date, states, func(v string) Filters {
		return Filters{State: v}
	})
}

func (c *Client) fetchByFilterValues(ctx context.Context, date time.Time, values []string, mk func(string) Filters) FetchResult {
	log := zap.L().With(zap.String("component", "agmarknet.client"))

	var records []market.PriceRecord
	var lastErr string
	succeeded := 0

	for _, v := range values {
		res := c.FetchAllForDate(ctx, date, mk(v))
		if !res.Success {
			log.Warn("sub-fetch failed, skipping filter value",
				zap.String("value", v),
				zap.String("error", res.Err),
			)
			lastErr = res.Err
			continue
		}
		records = append(records, res.Records...)
		succeeded++
	}

	if succeeded == 0 && len(values) > 0 {
		return FetchResult{Success: false, Records: []market.PriceRecord{}, Err: lastErr}
	}
	return FetchResult{Success: true, Records: records, Total: len(records)}
}

// fetchRaw performs one throttled request with retries. Retries use a backoff
// of one second multiplied by the attempt number.
func (c *Client) fetchRaw(ctx context.Context, date time.Time, filters Filters, limit, offset int) ([]map[string]any, int, error) {
	reqURL := c.buildURL(date, filters, limit, offset)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "agmarknet: rate limiter wait")
		}

		raws, total, err := c.doRequest(ctx, reqURL)
		if err == nil {
			return raws, total, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, 0, lastErr
		}

		if attempt <= c.cfg.MaxRetries {
			delay := time.Duration(attempt) * c.backoffUnit
			zap.L().Warn("agmarknet request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, 0, lastErr
			case <-timer.C:
			}
		}
	}

	return nil, 0, eris.Wrap(lastErr, "agmarknet: all retries exhausted")
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "agmarknet: create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "agmarknet: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, 0, eris.Errorf("agmarknet: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "agmarknet: read body")
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, eris.Wrap(err, "agmarknet: decode response")
	}

	return parsed.Records, parsed.Total, nil
}

// buildURL assembles the request URL with API key, pagination, descending
// arrival-date sort, the date filter in DD-MM-YYYY, and any optional filters
// normalized to title case.
func (c *Client) buildURL(date time.Time, filters Filters, limit, offset int) string {
	q := url.Values{}
	q.Set("api-key", c.cfg.APIKey)
	q.Set("format", "json")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("sort[Arrival_Date]", "desc")
	q.Set("filters[Arrival_Date]", date.Format("02-01-2006"))

	norm := filters.normalized()
	if norm.Commodity != "" {
		q.Set("filters[Commodity]", norm.Commodity)
	}
	if norm.State != "" {
		q.Set("filters[State]", norm.State)
	}
	if norm.District != "" {
		q.Set("filters[District]", norm.District)
	}
	if norm.Market != "" {
		q.Set("filters[Market]", norm.Market)
	}

	return fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, c.cfg.ResourceID, q.Encode())
}

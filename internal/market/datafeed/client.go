// Package datafeed implements the HTTP bar-history client used when a
// contract's own feed does not serve history. Transient failures retry with
// exponential backoff before surfacing an error.
package datafeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/schema"
)

const (
	defaultTimeout     = 10 * time.Second
	maxRetryElapsed    = 30 * time.Second
	maxResponsePayload = 8 * 1024 * 1024
)

// Client queries a bar-history HTTP service. It implements
// market.HistorySource.
type Client struct {
	baseURL string
	http    *http.Client
}

type barRecord struct {
	Instrument string  `json:"instrument"`
	Timestamp  int64   `json:"timestamp"`
	Interval   string  `json:"interval"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
}

// NewClient constructs a client for the service at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// QueryBars fetches bars for [start, end], retrying transient failures.
func (c *Client) QueryBars(ctx context.Context, instrument string, interval schema.Interval, start, end time.Time) ([]schema.BarData, error) {
	query := url.Values{}
	query.Set("instrument", instrument)
	query.Set("interval", string(interval))
	query.Set("start", start.Format(time.RFC3339))
	query.Set("end", end.Format(time.RFC3339))
	endpoint := c.baseURL + "/bars?" + query.Encode()

	operation := func() ([]schema.BarData, error) {
		return c.fetch(ctx, endpoint, instrument, interval)
	}
	bars, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxRetryElapsed))
	if err != nil {
		return nil, errs.New("datafeed/query", errs.CodeNetwork,
			errs.WithMessage("bar history query failed for "+instrument), errs.WithCause(err))
	}
	return bars, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, instrument string, interval schema.Interval) ([]schema.BarData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("datafeed status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("datafeed status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponsePayload))
	if err != nil {
		return nil, err
	}
	var records []barRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, backoff.Permanent(err)
	}

	bars := make([]schema.BarData, 0, len(records))
	for _, rec := range records {
		bars = append(bars, schema.BarData{
			Instrument: instrument,
			Timestamp:  time.UnixMilli(rec.Timestamp),
			Interval:   interval,
			Open:       rec.Open,
			High:       rec.High,
			Low:        rec.Low,
			Close:      rec.Close,
			Volume:     rec.Volume,
		})
	}
	return bars, nil
}

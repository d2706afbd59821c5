// Package source provides the outage sources outside Supabase: the scraper
// feed over HTTP and a JSON file on disk.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/pakli/sofia-outages/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("source")

// maxFeedBody caps how much of a feed response is read.
const maxFeedBody = 10 << 20

// FeedClient fetches raw outage records from the scraper endpoint.
type FeedClient struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewFeedClient creates a new FeedClient.
func NewFeedClient(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *FeedClient {
	return &FeedClient{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
	}
}

// Name implements port.OutageSource.
func (c *FeedClient) Name() string { return "feed" }

// FetchOutages fetches the feed with retry, circuit breaker, and tracing.
// The body may be a bare array or an object with a data array.
func (c *FeedClient) FetchOutages(ctx context.Context) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "FeedClient.FetchOutages")
	defer span.End()

	var rows []map[string]any

	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return resilience.Permanent(fmt.Errorf("feed returned status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
		if err != nil {
			return err
		}
		rows, err = decodeRecords(body)
		if err != nil {
			return resilience.Permanent(err)
		}
		return nil
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return nil, &domain.ErrCircuitOpen{Service: "feed"}
		}
		return nil, &domain.ErrExternalService{Service: "feed", Err: err}
	}

	span.SetAttributes(attribute.Int("outages.count", len(rows)))
	return rows, nil
}

// decodeRecords accepts `[...]`, `{"data": [...]}` and `{"outages": [...]}`.
func decodeRecords(body []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := unmarshalNumbers(body, &rows); err == nil {
		return rows, nil
	}

	var wrapped struct {
		Data    []map[string]any `json:"data"`
		Outages []map[string]any `json:"outages"`
	}
	if err := unmarshalNumbers(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode outage records: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	if wrapped.Outages != nil {
		return wrapped.Outages, nil
	}
	return []map[string]any{}, nil
}

// unmarshalNumbers keeps numbers as json.Number so large numeric ids survive.
func unmarshalNumbers(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

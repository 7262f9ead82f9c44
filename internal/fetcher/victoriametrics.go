// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// VictoriaMetricsConnector is the alternate metrics backend selectable in
// place of Mimir (grounded on connectors/victoria.py), retrying
// transient failures per the reference's @retry(attempts=3, delay=0.5,
// backoff=2.0) decorator on this connector specifically.
type VictoriaMetricsConnector struct {
	backend httpBackend
	retry   retryConfig
}

func NewVictoriaMetricsConnector(baseURL, tenantID string, client *http.Client, retry retryConfig) *VictoriaMetricsConnector {
	return &VictoriaMetricsConnector{
		backend: newHTTPBackend(strings.TrimRight(baseURL, "/"), tenantID, client, nil),
		retry:   retry,
	}
}

func (c *VictoriaMetricsConnector) QueryRange(ctx context.Context, query string, start, end int64, step string) (map[string]any, error) {
	params := url.Values{"query": {query}, "start": {itoa64(start)}, "end": {itoa64(end)}, "step": {step}}
	return withRetry(ctx, c.retry, func() (map[string]any, error) {
		return c.backend.getJSON(ctx, "/api/v1/query_range", params)
	})
}

func (c *VictoriaMetricsConnector) Scrape(ctx context.Context) (string, error) {
	return c.backend.getText(ctx, "/metrics")
}

// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// MimirConnector queries Mimir's Prometheus-compatible query_range
// endpoint, and can also scrape the tenant's raw exposition endpoint for
// fetch_metrics's degraded-mode fallback (grounded on connectors/mimir.py).
type MimirConnector struct {
	backend httpBackend
}

func NewMimirConnector(baseURL, tenantID string, client *http.Client) *MimirConnector {
	return &MimirConnector{backend: newHTTPBackend(strings.TrimRight(baseURL, "/"), tenantID, client, nil)}
}

func (c *MimirConnector) QueryRange(ctx context.Context, query string, start, end int64, step string) (map[string]any, error) {
	params := url.Values{"query": {query}, "start": {itoa64(start)}, "end": {itoa64(end)}, "step": {step}}
	return c.backend.getJSON(ctx, "/prometheus/api/v1/query_range", params)
}

func (c *MimirConnector) Scrape(ctx context.Context) (string, error) {
	return c.backend.getText(ctx, "/metrics")
}

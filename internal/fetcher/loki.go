// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// LokiConnector queries Loki's query_range endpoint for a tenant's logs
// (grounded on connectors/loki.py).
type LokiConnector struct {
	backend httpBackend
}

func NewLokiConnector(baseURL, tenantID string, client *http.Client) *LokiConnector {
	return &LokiConnector{backend: newHTTPBackend(strings.TrimRight(baseURL, "/"), tenantID, client, nil)}
}

func (c *LokiConnector) QueryRange(ctx context.Context, query string, start, end int64, limit int) (map[string]any, error) {
	params := url.Values{"query": {query}, "start": {itoa64(start)}, "end": {itoa64(end)}}
	if limit > 0 {
		params.Set("limit", itoa64(int64(limit)))
	}
	return c.backend.getJSON(ctx, "/loki/api/v1/query_range", params)
}

// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// TempoConnector queries Tempo's search endpoint for traces matching the
// given filters (grounded on connectors/tempo.py).
type TempoConnector struct {
	backend httpBackend
}

func NewTempoConnector(baseURL, tenantID string, client *http.Client) *TempoConnector {
	return &TempoConnector{backend: newHTTPBackend(strings.TrimRight(baseURL, "/"), tenantID, client, nil)}
}

func (c *TempoConnector) QueryRange(ctx context.Context, filters map[string]string, start, end int64, limit int) (map[string]any, error) {
	params := url.Values{"start": {itoa64(start)}, "end": {itoa64(end)}}
	for k, v := range filters {
		params.Set(k, v)
	}
	if limit > 0 {
		params.Set("limit", itoa64(int64(limit)))
	}
	return c.backend.getJSON(ctx, "/api/search", params)
}

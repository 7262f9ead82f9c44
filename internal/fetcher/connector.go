// Copyright 2025 James Ross
package fetcher

import "context"

// LogsConnector queries a log backend over a time range (spec §7,
// grounded on the reference LogsConnector.query_range contract).
type LogsConnector interface {
	QueryRange(ctx context.Context, query string, start, end int64, limit int) (map[string]any, error)
}

// MetricsConnector queries a metrics backend over a time range. Scrape is
// optional: connectors that expose a raw Prometheus exposition endpoint
// implement Scraper too, so fetch_metrics's scrape-and-fill fallback can
// use it.
type MetricsConnector interface {
	QueryRange(ctx context.Context, query string, start, end int64, step string) (map[string]any, error)
}

// Scraper is implemented by metrics connectors that can also return the
// raw Prometheus exposition text for the tenant (spec §4.1 stage 1
// fallback path).
type Scraper interface {
	Scrape(ctx context.Context) (string, error)
}

// TracesConnector queries a trace backend over a time range with
// arbitrary filter parameters.
type TracesConnector interface {
	QueryRange(ctx context.Context, filters map[string]string, start, end int64, limit int) (map[string]any, error)
}

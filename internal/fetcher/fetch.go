// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// QueryResult pairs a metric query with the raw response it returned.
type QueryResult struct {
	Query    string
	Response map[string]any
}

var (
	bareMetricName  = regexp.MustCompile(`^([a-zA-Z_:][a-zA-Z0-9_:]*)$`)
	rateMetricQuery = regexp.MustCompile(`^rate\(([a-zA-Z_:][a-zA-Z0-9_:]*)\[.*\]\)`)
)

// FetchMetrics concurrently runs every query against the provider's
// metrics connector (mirroring asyncio.gather(..., return_exceptions=True)
// in engine/fetcher.py's fetch_metrics), logging and skipping any query
// that errors. If every query came back with zero result series, it
// falls back to scraping the tenant's raw Prometheus exposition endpoint
// and synthesizing a minimal two-point series for any query whose metric
// name appears in the scrape.
func FetchMetrics(ctx context.Context, provider *Provider, queries []string, start, end int64, step string, log *zap.Logger) []QueryResult {
	type indexed struct {
		idx      int
		response map[string]any
		err      error
	}

	resultsCh := make(chan indexed, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			resp, err := provider.QueryMetrics(ctx, q, start, end, step)
			resultsCh <- indexed{idx: i, response: resp, err: err}
		}(i, q)
	}
	wg.Wait()
	close(resultsCh)

	raw := make([]indexed, len(queries))
	for r := range resultsCh {
		raw[r.idx] = r
	}

	pairs := make([]QueryResult, 0, len(queries))
	allEmpty := true
	for i, q := range queries {
		r := raw[i]
		if r.err != nil {
			log.Warn("fetch_metrics query failed", zap.String("query", q), zap.Error(r.err))
			continue
		}
		count := resultSeriesCount(r.response)
		log.Info("fetch_metrics query returned series", zap.String("query", q), zap.Int("count", count))
		pairs = append(pairs, QueryResult{Query: q, Response: r.response})
		if count > 0 {
			allEmpty = false
		}
	}

	if len(pairs) > 0 && allEmpty {
		if scraped := scrapeAndFill(ctx, provider, queries, start, end); len(scraped) > 0 {
			return scraped
		}
	}
	return pairs
}

func resultSeriesCount(response map[string]any) int {
	list, ok := jsonpathList(response, "$.data.result")
	if !ok {
		return 0
	}
	return len(list)
}

// scrapeAndFill synthesizes a degraded-mode result set from the raw
// Prometheus exposition text when every structured query returned no
// series (grounded on engine/fetcher.py's _scrape_and_fill): it matches
// each query string against a bare metric name or a `rate(name[...])`
// wrapper, or any scraped metric name occurring as a substring of the
// query, and builds a two-point [start, end] series holding the scraped
// instantaneous value.
func scrapeAndFill(ctx context.Context, provider *Provider, queries []string, start, end int64) []QueryResult {
	scraper, ok := provider.Metrics.(Scraper)
	if !ok {
		return nil
	}
	text, err := scraper.Scrape(ctx)
	if err != nil || text == "" {
		return nil
	}

	scraped := map[string]float64{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		name := parts[0]
		if idx := strings.Index(name, "{"); idx >= 0 {
			name = name[:idx]
		}
		if val, err := strconv.ParseFloat(parts[1], 64); err == nil {
			scraped[name] = val
		}
	}
	if len(scraped) == 0 {
		return nil
	}

	var out []QueryResult
	for _, q := range queries {
		candidates := map[string]struct{}{}
		if m := bareMetricName.FindStringSubmatch(q); m != nil {
			candidates[m[1]] = struct{}{}
		}
		if m := rateMetricQuery.FindStringSubmatch(q); m != nil {
			candidates[m[1]] = struct{}{}
		}
		for name := range scraped {
			if strings.Contains(q, name) {
				candidates[name] = struct{}{}
			}
		}

		for name := range candidates {
			val, ok := scraped[name]
			if !ok {
				continue
			}
			out = append(out, QueryResult{
				Query: q,
				Response: map[string]any{
					"status": "success",
					"data": map[string]any{
						"result": []any{
							map[string]any{
								"metric": map[string]any{"__name__": name},
								"values": []any{
									[]any{float64(start), val},
									[]any{float64(end), val},
								},
							},
						},
					},
				},
			})
		}
	}
	return out
}

// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeMetricsConnector struct {
	responses map[string]map[string]any
	fail      map[string]bool
	scrapeText string
	canScrape  bool
}

func (f *fakeMetricsConnector) QueryRange(ctx context.Context, query string, start, end int64, step string) (map[string]any, error) {
	if f.fail[query] {
		return nil, errors.New("oops")
	}
	return f.responses[query], nil
}

func (f *fakeMetricsConnector) Scrape(ctx context.Context) (string, error) {
	if !f.canScrape {
		return "", errors.New("no scrape")
	}
	return f.scrapeText, nil
}

func emptyResult() map[string]any {
	return map[string]any{"status": "success", "data": map[string]any{"result": []any{}}}
}

func oneSeriesResult(name string, val float64) map[string]any {
	return map[string]any{
		"status": "success",
		"data": map[string]any{
			"result": []any{
				map[string]any{
					"metric": map[string]any{"__name__": name},
					"values": []any{[]any{0.0, val}},
				},
			},
		},
	}
}

func TestFetchMetricsFiltersFailedQueries(t *testing.T) {
	conn := &fakeMetricsConnector{
		responses: map[string]map[string]any{
			"a": oneSeriesResult("a", 1),
			"c": oneSeriesResult("c", 3),
		},
		fail: map[string]bool{"bad": true},
	}
	provider := &Provider{Metrics: conn}

	results := FetchMetrics(context.Background(), provider, []string{"a", "bad", "c"}, 0, 1, "15s", zap.NewNop())
	if len(results) != 2 {
		t.Fatalf("expected 2 results after filtering the failed query, got %d", len(results))
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Query] = true
	}
	if !seen["a"] || !seen["c"] || seen["bad"] {
		t.Fatalf("unexpected result set: %+v", results)
	}
}

func TestFetchMetricsFallsBackToScrapeWhenAllEmpty(t *testing.T) {
	conn := &fakeMetricsConnector{
		responses: map[string]map[string]any{
			"cpu_usage": emptyResult(),
		},
		canScrape:  true,
		scrapeText: "# HELP cpu_usage\ncpu_usage{instance=\"a\"} 42.5\nother_metric 1\n",
	}
	provider := &Provider{Metrics: conn}

	results := FetchMetrics(context.Background(), provider, []string{"cpu_usage"}, 100, 200, "15s", zap.NewNop())
	if len(results) != 1 {
		t.Fatalf("expected 1 scraped result, got %d", len(results))
	}
	series := IterSeries(results[0].Response)
	if len(series) != 1 || series[0].Values[0] != 42.5 {
		t.Fatalf("expected scraped value synthesized into a two-point series, got %+v", series)
	}
}

func TestFetchMetricsKeepsStructuredEmptyResultsWhenScrapeUnavailable(t *testing.T) {
	conn := &fakeMetricsConnector{
		responses: map[string]map[string]any{
			"cpu_usage": emptyResult(),
		},
		canScrape: false,
	}
	provider := &Provider{Metrics: conn}

	results := FetchMetrics(context.Background(), provider, []string{"cpu_usage"}, 100, 200, "15s", zap.NewNop())
	if len(results) != 1 {
		t.Fatalf("expected the original empty result preserved, got %d", len(results))
	}
}

// Copyright 2025 James Ross
package fetcher

import (
	"math"
	"strconv"

	"github.com/PaesslerAG/jsonpath"

	"github.com/beobservant/becertain/internal/logs"
	"github.com/beobservant/becertain/internal/traces"
)

// MetricSeries is one named time series pulled out of a Prometheus/Mimir
// style query_range response.
type MetricSeries struct {
	Label      string
	Timestamps []float64
	Values     []float64
}

// asNumber coerces the loosely-typed JSON scalars (float64, int, string)
// the stdlib decoder and jsonpath hand back into a float64.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// IterSeries walks a Mimir/Prometheus-shaped query_range response
// (`{"data":{"result":[{"metric":{...},"values":[[ts,val],...]}]}}`) and
// yields one MetricSeries per result entry, using the same label
// fallback chain as the reference implementation: `__name__`, then
// `job`, then the first metric label value, then nothing (grounded on
// engine/anomaly/series.py's iter_series). Malformed [ts, value] pairs
// become NaN rather than being dropped, matching the reference.
func IterSeries(response map[string]any) []MetricSeries {
	results, ok := jsonpathList(response, "$.data.result")
	if !ok {
		return nil
	}

	var out []MetricSeries
	for _, r := range results {
		result, ok := r.(map[string]any)
		if !ok {
			continue
		}
		label := seriesLabel(result)

		pairsRaw, _ := result["values"].([]any)
		if len(pairsRaw) == 0 {
			continue
		}

		ts := make([]float64, 0, len(pairsRaw))
		vals := make([]float64, 0, len(pairsRaw))
		for _, pr := range pairsRaw {
			pair, ok := pr.([]any)
			if !ok || len(pair) < 2 {
				ts = append(ts, math.NaN())
				vals = append(vals, math.NaN())
				continue
			}
			t, tOK := asNumber(pair[0])
			v, vOK := asNumber(pair[1])
			if !tOK || !vOK {
				ts = append(ts, math.NaN())
				vals = append(vals, math.NaN())
				continue
			}
			ts = append(ts, t)
			vals = append(vals, v)
		}
		out = append(out, MetricSeries{Label: label, Timestamps: ts, Values: vals})
	}
	return out
}

func seriesLabel(result map[string]any) string {
	metric, _ := result["metric"].(map[string]any)
	if name, ok := asString(metric["__name__"]); ok && name != "" {
		return name
	}
	if job, ok := asString(metric["job"]); ok && job != "" {
		return job
	}
	for _, v := range metric {
		if s, ok := asString(v); ok {
			return s
		}
	}
	return "unknown"
}

// IterLogEntries walks a Loki-shaped query_range response
// (`{"data":{"result":[{"values":[[ts_ns, line],...]}]}}`), converting
// nanosecond timestamps to fractional Unix seconds (grounded on
// engine/logs/frequency.py's _iter_entries).
func IterLogEntries(response map[string]any) []logs.Entry {
	streams, ok := jsonpathList(response, "$.data.result")
	if !ok {
		return nil
	}

	var out []logs.Entry
	for _, s := range streams {
		stream, ok := s.(map[string]any)
		if !ok {
			continue
		}
		values, _ := stream["values"].([]any)
		for _, v := range values {
			pair, ok := v.([]any)
			if !ok || len(pair) < 2 {
				continue
			}
			tsNs, tsOK := asNumber(pair[0])
			line, lineOK := asString(pair[1])
			if !tsOK || !lineOK {
				continue
			}
			out = append(out, logs.Entry{Timestamp: tsNs / 1e9, Line: line})
		}
	}
	return out
}

// spanStatusIsError reports whether a Tempo span's status.code attribute
// marks it as an error (grounded on engine/traces/errors.go's and
// latency.py's shared attribute-walk).
func spanStatusIsError(span map[string]any) bool {
	attrs, _ := span["attributes"].([]any)
	for _, a := range attrs {
		attr, ok := a.(map[string]any)
		if !ok {
			continue
		}
		key, _ := asString(attr["key"])
		if key != "status.code" {
			continue
		}
		value, _ := attr["value"].(map[string]any)
		sv, _ := asString(value["stringValue"])
		if sv == "STATUS_CODE_ERROR" || sv == "ERROR" {
			return true
		}
	}
	return false
}

// ExtractTraces converts a Tempo search response's `traces` array into
// the flattened (service, operation, duration, per-span error) shape
// internal/traces consumes, folding rootServiceName/rootTraceName and the
// spanSet's error attributes the same way latency.py and errors.py do.
func ExtractTraces(response map[string]any) []traces.Trace {
	rawTraces, ok := jsonpathList(response, "$.traces")
	if !ok {
		return nil
	}

	var out []traces.Trace
	for _, rt := range rawTraces {
		tr, ok := rt.(map[string]any)
		if !ok {
			continue
		}
		service, _ := asString(tr["rootServiceName"])
		if service == "" {
			service = "unknown"
		}
		operation, _ := asString(tr["rootTraceName"])
		if operation == "" {
			operation = "unknown"
		}
		duration, _ := asNumber(tr["durationMs"])

		spanSet, _ := tr["spanSet"].(map[string]any)
		spansRaw, _ := spanSet["spans"].([]any)
		spans := make([]traces.Span, 0, len(spansRaw))
		for _, sr := range spansRaw {
			span, ok := sr.(map[string]any)
			if !ok {
				continue
			}
			spans = append(spans, traces.Span{HasError: spanStatusIsError(span)})
		}

		out = append(out, traces.Trace{
			Service:    service,
			Operation:  operation,
			DurationMs: duration,
			Spans:      spans,
		})
	}
	return out
}

// jsonpathList evaluates path against v and returns it as a []any, or
// false if the path is absent or not a list (an absent path is a normal
// "nothing here" outcome, not an error, matching the reference's
// dict.get(...) chains rather than raising).
func jsonpathList(v any, path string) ([]any, bool) {
	result, err := jsonpath.Get(path, v)
	if err != nil {
		return nil, false
	}
	list, ok := result.([]any)
	if !ok {
		return nil, false
	}
	return list, true
}

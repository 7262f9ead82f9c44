// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// httpBackend is the shared plumbing every connector (Loki, Mimir,
// VictoriaMetrics, Tempo) builds on: tenant-header injection, a GET with
// query params, and the unavailable/timeout/invalid-query error mapping
// the reference connectors apply (connectors/loki.py, mimir.py, tempo.py).
type httpBackend struct {
	baseURL  string
	tenantID string
	client   *http.Client
	headers  map[string]string
}

func newHTTPBackend(baseURL, tenantID string, client *http.Client, headers map[string]string) httpBackend {
	return httpBackend{baseURL: baseURL, tenantID: tenantID, client: client, headers: headers}
}

func (b httpBackend) getJSON(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newInvalidQuery(path, err)
	}
	req.Header.Set("X-Scope-OrgID", b.tenantID)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newTimeout(path, err)
		}
		return nil, newUnavailable(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newUnavailable(path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newInvalidQuery(path, errors.New(resp.Status+": "+string(body)))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newInvalidQuery(path, err)
	}
	return out, nil
}

func (b httpBackend) getText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return "", newInvalidQuery(path, err)
	}
	req.Header.Set("X-Scope-OrgID", b.tenantID)

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newTimeout(path, err)
		}
		return "", newUnavailable(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newUnavailable(path, err)
	}
	if resp.StatusCode >= 400 {
		return "", newInvalidQuery(path, errors.New(resp.Status))
	}
	return string(body), nil
}

func itoa64(v int64) string { return strconv.FormatInt(v, 10) }

// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLokiConnectorSendsTenantHeaderAndQueryParams(t *testing.T) {
	var gotTenant, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = r.Header.Get("X-Scope-OrgID")
		gotQuery = r.URL.Query().Get("query")
		w.Write([]byte(`{"status":"success","data":{"result":[]}}`))
	}))
	defer srv.Close()

	conn := NewLokiConnector(srv.URL, "acme", &http.Client{Timeout: time.Second})
	resp, err := conn.QueryRange(context.Background(), `{app="checkout"}`, 0, 100, 0)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if gotTenant != "acme" {
		t.Fatalf("expected tenant header acme, got %q", gotTenant)
	}
	if gotQuery != `{app="checkout"}` {
		t.Fatalf("expected query param passed through, got %q", gotQuery)
	}
	if resp["status"] != "success" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMimirConnectorMapsNon2xxToInvalidQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad query"))
	}))
	defer srv.Close()

	conn := NewMimirConnector(srv.URL, "acme", &http.Client{Timeout: time.Second})
	_, err := conn.QueryRange(context.Background(), "invalid{{", 0, 100, "15s")
	var invalid *InvalidQuery
	if !asInvalidQuery(err, &invalid) {
		t.Fatalf("expected InvalidQuery, got %T: %v", err, err)
	}
}

func TestMimirConnectorMapsUnreachableToDataSourceUnavailable(t *testing.T) {
	conn := NewMimirConnector("http://127.0.0.1:1", "acme", &http.Client{Timeout: 100 * time.Millisecond})
	_, err := conn.QueryRange(context.Background(), "cpu_usage", 0, 100, "15s")
	var unavailable *DataSourceUnavailable
	if !asUnavailable(err, &unavailable) {
		t.Fatalf("expected DataSourceUnavailable, got %T: %v", err, err)
	}
}

func TestTempoConnectorAppliesFilters(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("service.name")
		w.Write([]byte(`{"traces":[]}`))
	}))
	defer srv.Close()

	conn := NewTempoConnector(srv.URL, "acme", &http.Client{Timeout: time.Second})
	_, err := conn.QueryRange(context.Background(), map[string]string{"service.name": "checkout"}, 0, 100, 50)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if gotFilter != "checkout" {
		t.Fatalf("expected filter passed through as query param, got %q", gotFilter)
	}
}

func TestMimirConnectorScrapesExpositionText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			t.Errorf("expected /metrics path, got %s", r.URL.Path)
		}
		w.Write([]byte("cpu_usage 12.5\n"))
	}))
	defer srv.Close()

	conn := NewMimirConnector(srv.URL, "acme", &http.Client{Timeout: time.Second})
	text, err := conn.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if text != "cpu_usage 12.5\n" {
		t.Fatalf("unexpected scrape text: %q", text)
	}
}

func asInvalidQuery(err error, target **InvalidQuery) bool {
	e, ok := err.(*InvalidQuery)
	if ok {
		*target = e
	}
	return ok
}

func asUnavailable(err error, target **DataSourceUnavailable) bool {
	e, ok := err.(*DataSourceUnavailable)
	if ok {
		*target = e
	}
	return ok
}

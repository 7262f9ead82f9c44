// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"net/http"

	"github.com/beobservant/becertain/internal/config"
)

// Provider is the unified, tenant-scoped entry point to the logs,
// metrics, and traces connectors (grounded on datasources/provider.py's
// DataSourceProvider).
type Provider struct {
	TenantID string

	Logs    LogsConnector
	Metrics MetricsConnector
	Traces  TracesConnector
}

// NewProvider builds the tenant's connectors for whichever backends cfg
// names, wiring X-Scope-OrgID tenant isolation into every request.
func NewProvider(cfg config.DataSources, tenantID string) (*Provider, error) {
	client := &http.Client{Timeout: cfg.ConnectorTimeout}

	logsConn, err := newLogsConnector(cfg, tenantID, client)
	if err != nil {
		return nil, err
	}
	metricsConn, err := newMetricsConnector(cfg, tenantID, client)
	if err != nil {
		return nil, err
	}
	tracesConn, err := newTracesConnector(cfg, tenantID, client)
	if err != nil {
		return nil, err
	}

	return &Provider{TenantID: tenantID, Logs: logsConn, Metrics: metricsConn, Traces: tracesConn}, nil
}

func (p *Provider) QueryLogs(ctx context.Context, query string, start, end int64, limit int) (map[string]any, error) {
	return p.Logs.QueryRange(ctx, query, start, end, limit)
}

func (p *Provider) QueryMetrics(ctx context.Context, query string, start, end int64, step string) (map[string]any, error) {
	return p.Metrics.QueryRange(ctx, query, start, end, step)
}

func (p *Provider) QueryTraces(ctx context.Context, filters map[string]string, start, end int64, limit int) (map[string]any, error) {
	return p.Traces.QueryRange(ctx, filters, start, end, limit)
}

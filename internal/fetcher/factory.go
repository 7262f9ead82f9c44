// Copyright 2025 James Ross
package fetcher

import (
	"fmt"
	"net/http"

	"github.com/beobservant/becertain/internal/config"
)

// newLogsConnector selects the logs backend named in cfg (grounded on
// datasources/factory.py's DataSourceFactory.create_logs).
func newLogsConnector(cfg config.DataSources, tenantID string, client *http.Client) (LogsConnector, error) {
	switch cfg.LogsBackend {
	case "loki":
		return NewLokiConnector(cfg.LokiURL, tenantID, client), nil
	default:
		return nil, fmt.Errorf("unsupported logs backend %q", cfg.LogsBackend)
	}
}

// newMetricsConnector selects the metrics backend named in cfg
// (grounded on DataSourceFactory.create_metrics).
func newMetricsConnector(cfg config.DataSources, tenantID string, client *http.Client) (MetricsConnector, error) {
	switch cfg.MetricsBackend {
	case "mimir":
		return NewMimirConnector(cfg.MimirURL, tenantID, client), nil
	case "victoriametrics":
		retry := retryConfig{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: cfg.RetryBackoff}
		return NewVictoriaMetricsConnector(cfg.VictoriaMetricsURL, tenantID, client, retry), nil
	default:
		return nil, fmt.Errorf("unsupported metrics backend %q", cfg.MetricsBackend)
	}
}

// newTracesConnector selects the traces backend named in cfg (grounded
// on DataSourceFactory.create_traces).
func newTracesConnector(cfg config.DataSources, tenantID string, client *http.Client) (TracesConnector, error) {
	switch cfg.TracesBackend {
	case "tempo":
		return NewTempoConnector(cfg.TempoURL, tenantID, client), nil
	default:
		return nil, fmt.Errorf("unsupported traces backend %q", cfg.TracesBackend)
	}
}

// Copyright 2025 James Ross
package analyzer

import (
	"github.com/beobservant/becertain/internal/correlation"
	"github.com/beobservant/becertain/internal/ml"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// correlate implements spec §4.1 stage 7's cross-signal windowing: when
// the request names an explicit correlation window it overrides the
// tenant's configured default by constructing a one-off Correlator,
// mirroring how the Python reference rebuilds its correlator per request.
func (a *Analyzer) correlate(req rcamodel.AnalyzeRequest, anomalies []rcamodel.MetricAnomaly, bursts []rcamodel.LogBurst, latencies []rcamodel.ServiceLatency) []rcamodel.CorrelatedEvent {
	correlator := a.correlator
	if req.CorrelationWindowSecs > 0 {
		cfg := a.cfg.Correlation
		cfg.WindowSeconds = req.CorrelationWindowSecs
		correlator = correlation.NewCorrelator(cfg)
	}
	return correlator.Correlate(anomalies, bursts, latencies)
}

func toLogMetricLinks(in []correlation.LogMetricLink) []rcamodel.LogMetricLink {
	out := make([]rcamodel.LogMetricLink, len(in))
	for i, l := range in {
		out[i] = rcamodel.LogMetricLink{
			MetricName:    l.MetricName,
			MetricTime:    l.MetricTime,
			LogStream:     l.LogStream,
			LogBurstStart: l.LogBurstStart,
			LagSeconds:    l.LagSeconds,
			Strength:      l.Strength,
		}
	}
	return out
}

func toAnomalyClusters(in []ml.AnomalyCluster) []rcamodel.AnomalyCluster {
	out := make([]rcamodel.AnomalyCluster, len(in))
	for i, c := range in {
		out[i] = rcamodel.AnomalyCluster{
			ClusterID:         c.ClusterID,
			MetricNames:       c.MetricNames,
			CentroidTimestamp: c.CentroidTimestamp,
			CentroidValue:     c.CentroidValue,
			Size:              c.Size,
			IsNoise:           c.IsNoise,
		}
	}
	return out
}

// Copyright 2025 James Ross
package ml

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// AnomalyCluster groups anomalies that sit close together in normalized
// time/value space, so the orchestrator can reason about one incident
// instead of many correlated samples (spec §4.8 clustering gate).
type AnomalyCluster struct {
	ClusterID         int
	Members           []rcamodel.MetricAnomaly
	CentroidTimestamp float64
	CentroidValue     float64
	MetricNames       []string
	Size              int
	IsNoise           bool
}

// Clusterer runs DBSCAN over anomalies projected onto normalized
// (timestamp, value) coordinates.
type Clusterer struct {
	cfg config.Dedup
}

func NewClusterer(cfg config.Dedup) *Clusterer {
	return &Clusterer{cfg: cfg}
}

// Cluster returns nil when there are fewer anomalies than min_samples.
// Noise points (DBSCAN label -1) are grouped into a single IsNoise
// cluster, matching the reference's label bucketing.
func (c *Clusterer) Cluster(anomalies []rcamodel.MetricAnomaly) []AnomalyCluster {
	minSamples := c.cfg.ClusterMinPts
	if minSamples <= 0 {
		minSamples = 2
	}
	if len(anomalies) < minSamples {
		return nil
	}

	eps := c.cfg.ClusterEps
	if eps <= 0 {
		eps = 0.1
	}

	points := featureMatrix(anomalies)
	labels := dbscan(points, eps, minSamples)

	buckets := make(map[int][]int)
	for i, label := range labels {
		buckets[label] = append(buckets[label], i)
	}

	var clusters []AnomalyCluster
	for label, idxs := range buckets {
		members := make([]rcamodel.MetricAnomaly, len(idxs))
		var sumTS, sumVal float64
		seenMetric := make(map[string]struct{})
		var metricNames []string
		for i, idx := range idxs {
			a := anomalies[idx]
			members[i] = a
			sumTS += a.Timestamp
			sumVal += a.Value
			if _, ok := seenMetric[a.MetricName]; !ok {
				seenMetric[a.MetricName] = struct{}{}
				metricNames = append(metricNames, a.MetricName)
			}
		}
		n := float64(len(idxs))
		clusters = append(clusters, AnomalyCluster{
			ClusterID:         label,
			Members:           members,
			CentroidTimestamp: sumTS / n,
			CentroidValue:     sumVal / n,
			MetricNames:       metricNames,
			Size:              len(idxs),
			IsNoise:           label == -1,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
	return clusters
}

type point struct{ x, y float64 }

func featureMatrix(anomalies []rcamodel.MetricAnomaly) []point {
	n := len(anomalies)
	pts := make([]point, n)
	minTS, maxTS := anomalies[0].Timestamp, anomalies[0].Timestamp
	minVal, maxVal := anomalies[0].Value, anomalies[0].Value
	for _, a := range anomalies {
		if a.Timestamp < minTS {
			minTS = a.Timestamp
		}
		if a.Timestamp > maxTS {
			maxTS = a.Timestamp
		}
		if a.Value < minVal {
			minVal = a.Value
		}
		if a.Value > maxVal {
			maxVal = a.Value
		}
	}
	tsRange := maxTS - minTS + 1e-9
	valRange := maxVal - minVal + 1e-9
	for i, a := range anomalies {
		pts[i] = point{
			x: (a.Timestamp - minTS) / tsRange,
			y: (a.Value - minVal) / valRange,
		}
	}
	return pts
}

func dist(a, b point) float64 {
	dx := a.x - b.x
	dy := a.y - b.y
	return dx*dx + dy*dy
}

// dbscan is a standard density-based clustering pass: labels start at -1
// (noise) and are assigned incrementing cluster IDs from 0 as dense
// neighborhoods expand.
func dbscan(points []point, eps float64, minSamples int) []int {
	n := len(points)
	eps2 := eps * eps
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	visited := make([]bool, n)
	clusterID := 0

	regionQuery := func(idx int) []int {
		var neighbors []int
		for j := 0; j < n; j++ {
			if dist(points[idx], points[j]) <= eps2 {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := regionQuery(i)
		if len(neighbors) < minSamples {
			continue
		}

		labels[i] = clusterID
		seeds := append([]int{}, neighbors...)
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if !visited[j] {
				visited[j] = true
				jNeighbors := regionQuery(j)
				if len(jNeighbors) >= minSamples {
					seeds = append(seeds, jNeighbors...)
				}
			}
			if labels[j] == -1 {
				labels[j] = clusterID
			}
		}
		clusterID++
	}
	return labels
}

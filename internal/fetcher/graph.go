// Copyright 2025 James Ross
package fetcher

import "github.com/beobservant/becertain/internal/topology"

// ExtractCallEdges walks a Tempo search response's `traces` array and
// derives caller -> callee edges from each trace's spanSets attributes,
// preferring an explicit service.name/peer.service (or db.name) pair and
// falling back to rootServiceName -> peer when the span set names only
// one side (grounded on engine/topology/graph.py's from_spans).
func ExtractCallEdges(response map[string]any) []topology.CallEdge {
	rawTraces, ok := jsonpathList(response, "$.traces")
	if !ok {
		return nil
	}

	var edges []topology.CallEdge
	for _, rt := range rawTraces {
		tr, ok := rt.(map[string]any)
		if !ok {
			continue
		}
		root, _ := asString(tr["rootServiceName"])

		spanSetsRaw, _ := tr["spanSets"].([]any)
		for _, ssr := range spanSetsRaw {
			spanSet, ok := ssr.(map[string]any)
			if !ok {
				continue
			}
			svc, peer := spanSetEndpoints(spanSet)
			switch {
			case svc != "" && peer != "":
				edges = append(edges, topology.CallEdge{Caller: svc, Callee: peer})
			case root != "" && peer != "":
				edges = append(edges, topology.CallEdge{Caller: root, Callee: peer})
			}
		}
	}
	return edges
}

func spanSetEndpoints(spanSet map[string]any) (svc, peer string) {
	attrs, _ := spanSet["attributes"].([]any)
	for _, a := range attrs {
		attr, ok := a.(map[string]any)
		if !ok {
			continue
		}
		key, _ := asString(attr["key"])
		value, _ := attr["value"].(map[string]any)
		v, _ := asString(value["stringValue"])
		switch key {
		case "service.name":
			svc = v
		case "peer.service", "db.name":
			peer = v
		}
	}
	return svc, peer
}

// Copyright 2025 James Ross
package causal

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
)

// CausalEdge is a directed, weighted causal link discovered between two
// metrics, typically seeded from a GrangerResult (spec §4.5).
type CausalEdge struct {
	Cause      string
	Effect     string
	Strength   float64
	LagSeconds float64
}

// InterventionResult projects how strongly a hypothetical intervention on
// target would ripple through its downstream causal effects (spec §4.7).
type InterventionResult struct {
	Target            string             `json:"target"`
	ExpectedEffectOn  map[string]float64 `json:"expected_effect_on"`
	CausalPath        []string           `json:"causal_path"`
	TotalEffect       float64            `json:"total_effect"`
}

// Graph is a directed graph of causal edges between metrics, built from
// Granger results, supporting topological ordering, root-cause
// identification, intervention simulation, and common-ancestor queries.
type Graph struct {
	cfg     config.Causal
	edges   []CausalEdge
	forward map[string][]CausalEdge
	reverse map[string]map[string]struct{}
}

func NewGraph(cfg config.Causal) *Graph {
	return &Graph{
		cfg:     cfg,
		forward: make(map[string][]CausalEdge),
		reverse: make(map[string]map[string]struct{}),
	}
}

func (g *Graph) AddEdge(cause, effect string, strength, lagSeconds float64) {
	edge := CausalEdge{Cause: cause, Effect: effect, Strength: strength, LagSeconds: lagSeconds}
	g.edges = append(g.edges, edge)
	g.forward[cause] = append(g.forward[cause], edge)
	if g.reverse[effect] == nil {
		g.reverse[effect] = make(map[string]struct{})
	}
	g.reverse[effect][cause] = struct{}{}
}

// FromGrangerResults seeds the graph from every causal GrangerResult.
func (g *Graph) FromGrangerResults(results []GrangerResult) {
	for _, r := range results {
		if r.IsCausal {
			g.AddEdge(r.CauseMetric, r.EffectMetric, r.Strength, 0)
		}
	}
}

// TopologicalSort returns graph nodes in dependency order via Kahn's
// algorithm. Ties are broken lexically for determinism.
func (g *Graph) TopologicalSort() []string {
	nodes := g.AllNodes()
	inDegree := make(map[string]int, len(nodes))
	for n := range nodes {
		inDegree[n] = 0
	}
	for _, edges := range g.forward {
		for _, e := range edges {
			inDegree[e.Effect]++
		}
	}

	var queue []string
	for n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var freed []string
		for _, e := range g.forward[node] {
			inDegree[e.Effect]--
			if inDegree[e.Effect] == 0 {
				freed = append(freed, e.Effect)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}
	return order
}

// RootCauses returns every node that causes something but is never itself
// caused — the graph's source nodes.
func (g *Graph) RootCauses() []string {
	effects := make(map[string]struct{})
	for _, e := range g.edges {
		effects[e.Effect] = struct{}{}
	}
	var roots []string
	for cause := range g.forward {
		if _, isEffect := effects[cause]; !isEffect {
			roots = append(roots, cause)
		}
	}
	sort.Strings(roots)
	return roots
}

type frontierEntry struct {
	node       string
	cumulative float64
	depth      int
}

// SimulateIntervention BFS-walks downstream from target, accumulating the
// strongest cumulative-strength path to each reachable effect, up to
// graph_max_depth hops.
func (g *Graph) SimulateIntervention(target string, maxDepth int) InterventionResult {
	if maxDepth <= 0 {
		maxDepth = g.cfg.GraphMaxDepth
	}
	if maxDepth <= 0 {
		maxDepth = 5
	}
	precision := g.cfg.RoundPrecision
	if precision <= 0 {
		precision = 4
	}

	effects := make(map[string]float64)
	var path []string
	seen := map[string]struct{}{target: {}}
	queue := []frontierEntry{{node: target, cumulative: 1.0, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.forward[cur.node] {
			effectStrength := cur.cumulative * e.Strength
			if _, ok := seen[e.Effect]; !ok {
				seen[e.Effect] = struct{}{}
				path = append(path, e.Effect)
			}
			if effectStrength > effects[e.Effect] {
				effects[e.Effect] = round(effectStrength, precision)
			}
			queue = append(queue, frontierEntry{node: e.Effect, cumulative: effectStrength, depth: cur.depth + 1})
		}
	}

	var total float64
	for _, v := range effects {
		total += v
	}

	return InterventionResult{
		Target:           target,
		ExpectedEffectOn: effects,
		CausalPath:       path,
		TotalEffect:      round(total, precision),
	}
}

// FindCommonCauses returns the ancestors shared by both nodes.
func (g *Graph) FindCommonCauses(nodeA, nodeB string) []string {
	a := g.ancestors(nodeA)
	b := g.ancestors(nodeB)

	var common []string
	for n := range a {
		if _, ok := b[n]; ok {
			common = append(common, n)
		}
	}
	sort.Strings(common)
	return common
}

func (g *Graph) ancestors(node string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := []string{node}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for parent := range g.reverse[n] {
			if _, ok := seen[parent]; !ok {
				seen[parent] = struct{}{}
				queue = append(queue, parent)
			}
		}
	}
	return seen
}

// AllNodes returns every node that appears as a cause or an effect.
func (g *Graph) AllNodes() map[string]struct{} {
	nodes := make(map[string]struct{})
	for cause := range g.forward {
		nodes[cause] = struct{}{}
	}
	for _, e := range g.edges {
		nodes[e.Effect] = struct{}{}
	}
	return nodes
}

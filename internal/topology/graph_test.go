// Copyright 2025 James Ross
package topology

import "testing"

func TestBlastRadiusOfNoDoubleCounting(t *testing.T) {
	g := NewDependencyGraph()
	g.AddCall("gateway", "checkout")
	g.AddCall("checkout", "payments")
	g.AddCall("checkout", "inventory")
	g.AddCall("payments", "inventory")

	blast := g.BlastRadiusOf("gateway", 6)
	counts := map[string]int{}
	for _, s := range blast.AffectedDownstream {
		counts[s]++
	}
	for svc, c := range counts {
		if c != 1 {
			t.Fatalf("service %s counted %d times, expected exactly once", svc, c)
		}
	}
	if counts["inventory"] != 1 {
		t.Fatal("expected inventory reachable via two paths to appear exactly once")
	}
}

func TestBlastRadiusRespectsMaxDepth(t *testing.T) {
	g := NewDependencyGraph()
	g.AddCall("a", "b")
	g.AddCall("b", "c")
	g.AddCall("c", "d")

	blast := g.BlastRadiusOf("a", 1)
	if len(blast.AffectedDownstream) != 1 || blast.AffectedDownstream[0] != "b" {
		t.Fatalf("expected only 'b' within depth 1, got %v", blast.AffectedDownstream)
	}
}

func TestAddCallIgnoresSelfLoop(t *testing.T) {
	g := NewDependencyGraph()
	g.AddCall("a", "a")
	if len(g.AllServices()) != 0 {
		t.Fatalf("expected self-loop to be ignored, got %v", g.AllServices())
	}
}

func TestFindUpstreamRoots(t *testing.T) {
	g := NewDependencyGraph()
	g.AddCall("gateway", "checkout")
	g.AddCall("checkout", "payments")

	roots := g.FindUpstreamRoots("payments")
	if len(roots) != 1 || roots[0] != "gateway" {
		t.Fatalf("expected gateway as the sole upstream root, got %v", roots)
	}
}

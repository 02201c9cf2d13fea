package graph

import "testing"

func TestAddEdgeDetectsDirectCycle(t *testing.T) {
	g := New()
	if err := g.AddEdge("b", "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge("a", "b"); err == nil {
		t.Fatal("expected cyclic dependency error")
	}
}

func TestAddEdgeDetectsTransitiveCycle(t *testing.T) {
	g := New()
	must(t, g.AddEdge("c", "b"))
	must(t, g.AddEdge("b", "a"))
	if err := g.AddEdge("a", "c"); err == nil {
		t.Fatal("expected cyclic dependency error for a -> c -> b -> a")
	}
}

func TestAddEdgeSelfReference(t *testing.T) {
	g := New()
	if err := g.AddEdge("a", "a"); err == nil {
		t.Fatal("expected cyclic dependency error for self-reference")
	}
}

func TestDependentsAndDependencies(t *testing.T) {
	g := New()
	must(t, g.AddEdge("b", "a"))
	must(t, g.AddEdge("c", "a"))

	deps := g.Dependents("a")
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependents of a, got %v", deps)
	}
	if got := g.Dependencies("b"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected b to depend on [a], got %v", got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

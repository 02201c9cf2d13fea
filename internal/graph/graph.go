// Package graph tracks cross-deployment dependency arrows and detects cycles before a
// claim resolution would introduce one (spec §4.3, §9). Nodes are addressed by
// deployment identity string, not by pointer, so the graph can be rebuilt cheaply from
// registry rows on every resolution and never outlives a single request.
package graph

import "github.com/infraweave-io/control-plane/internal/apperrors"

// Graph is an arena of integer-indexed nodes; edges are referrer→referent, meaning "the
// referrer's claim interpolates one of the referent's outputs" (spec §9: "never owning
// pointers").
type Graph struct {
	index map[string]int
	names []string
	edges [][]int // edges[i] = indices referent by node i
}

func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

func (g *Graph) nodeIndex(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.names)
	g.index[name] = i
	g.names = append(g.names, name)
	g.edges = append(g.edges, nil)
	return i
}

// AddEdge records that referrer depends on referent. It returns CyclicDependency if
// adding the edge would close a cycle, without mutating the graph.
func (g *Graph) AddEdge(referrer, referent string) error {
	if referrer == referent {
		return apperrors.New(apperrors.CyclicDependency, "%s depends on itself", referrer)
	}
	from := g.nodeIndex(referrer)
	to := g.nodeIndex(referent)

	if g.reaches(to, from) {
		return apperrors.New(apperrors.CyclicDependency, "%s -> %s would close a cycle", referrer, referent)
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// reaches reports whether a path exists from `from` to `target` via a depth-first walk.
func (g *Graph) reaches(from, target int) bool {
	if from == target {
		return true
	}
	visited := make([]bool, len(g.names))
	var walk func(n int) bool
	walk = func(n int) bool {
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, next := range g.edges[n] {
			if next == target || walk(next) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// Dependents returns the names that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	target, ok := g.index[name]
	if !ok {
		return nil
	}
	var out []string
	for i, edges := range g.edges {
		for _, e := range edges {
			if e == target {
				out = append(out, g.names[i])
				break
			}
		}
	}
	return out
}

// Dependencies returns the names that name directly depends on.
func (g *Graph) Dependencies(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.edges[i]))
	for _, e := range g.edges[i] {
		out = append(out, g.names[e])
	}
	return out
}

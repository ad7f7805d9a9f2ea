// Package graph implements the resource dependency graph: edges derived
// from Reference values found while walking resolved attrs, a Kahn's
// algorithm topological sort, and cycle detection with a named cycle path.
//
// Grounded on original_source/carina-core/src/module.rs's
// DependencyGraph{edges, reverse_edges} surface (root_resources,
// leaf_resources, dependencies_of, dependents_of, has_cycle), combined
// with picklr-io-picklr/internal/engine/graph.go's topological-sort idiom.
package graph

import (
	"sort"
	"strings"

	"github.com/carina-lang/carina/internal/ir"
)

// Dependency is one edge: Source is the referring resource's key, Target
// is the resource this edge points to, and Attribute names which attribute
// on the source carried the reference.
type Dependency struct {
	Source    ir.ResourceKey
	Target    ir.ResourceKey
	Attribute string
}

// DependencyGraph is a directed graph over ResourceKeys: edges run from a
// referring resource to the resource it refers to.
type DependencyGraph struct {
	edges        map[ir.ResourceKey]map[ir.ResourceKey]struct{}
	reverseEdges map[ir.ResourceKey]map[ir.ResourceKey]struct{}
	nodes        map[ir.ResourceKey]struct{}
}

func New() *DependencyGraph {
	return &DependencyGraph{
		edges:        map[ir.ResourceKey]map[ir.ResourceKey]struct{}{},
		reverseEdges: map[ir.ResourceKey]map[ir.ResourceKey]struct{}{},
		nodes:        map[ir.ResourceKey]struct{}{},
	}
}

// AddNode registers a resource key with no edges, ensuring it appears in
// topological output even if nothing depends on or from it.
func (g *DependencyGraph) AddNode(k ir.ResourceKey) {
	g.nodes[k] = struct{}{}
}

// AddEdge records that source depends on target (source must run after
// target).
func (g *DependencyGraph) AddEdge(source, target ir.ResourceKey) {
	g.AddNode(source)
	g.AddNode(target)
	if g.edges[source] == nil {
		g.edges[source] = map[ir.ResourceKey]struct{}{}
	}
	g.edges[source][target] = struct{}{}
	if g.reverseEdges[target] == nil {
		g.reverseEdges[target] = map[ir.ResourceKey]struct{}{}
	}
	g.reverseEdges[target][source] = struct{}{}
}

// DependenciesOf returns the keys that k directly depends on.
func (g *DependencyGraph) DependenciesOf(k ir.ResourceKey) []ir.ResourceKey {
	return sortedKeySet(g.edges[k])
}

// DependentsOf returns the keys that directly depend on k.
func (g *DependencyGraph) DependentsOf(k ir.ResourceKey) []ir.ResourceKey {
	return sortedKeySet(g.reverseEdges[k])
}

// RootResources returns nodes with no incoming edges (nothing depends on
// them) -- the natural starting points for `carina module info`'s tree
// display.
func (g *DependencyGraph) RootResources() []ir.ResourceKey {
	var roots []ir.ResourceKey
	for k := range g.nodes {
		if len(g.reverseEdges[k]) == 0 {
			roots = append(roots, k)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].String() < roots[j].String() })
	return roots
}

// LeafResources returns nodes with no outgoing edges (they depend on
// nothing).
func (g *DependencyGraph) LeafResources() []ir.ResourceKey {
	var leaves []ir.ResourceKey
	for k := range g.nodes {
		if len(g.edges[k]) == 0 {
			leaves = append(leaves, k)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].String() < leaves[j].String() })
	return leaves
}

func sortedKeySet(m map[ir.ResourceKey]struct{}) []ir.ResourceKey {
	out := make([]ir.ResourceKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// CycleError names the cycle, matching module_resolver.rs's
// ModuleError::CircularImport{path}.
type CycleError struct {
	Cycle []ir.ResourceKey
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		parts[i] = k.String()
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}

// TopoSort returns nodes in topological order (referents before
// referrers) using Kahn's algorithm, with a stable secondary sort by
// ResourceKey string within each layer for deterministic output (spec.md
// §4.5's determinism requirement). Returns a *CycleError if the graph is
// not a DAG.
func (g *DependencyGraph) TopoSort() ([]ir.ResourceKey, error) {
	// A node is ready once every resource it depends on has been emitted.
	remaining := map[ir.ResourceKey]map[ir.ResourceKey]struct{}{}
	for k, deps := range g.edges {
		remaining[k] = map[ir.ResourceKey]struct{}{}
		for t := range deps {
			remaining[k][t] = struct{}{}
		}
	}

	var ready []ir.ResourceKey
	for k := range g.nodes {
		if len(remaining[k]) == 0 {
			ready = append(ready, k)
		}
	}

	var order []ir.ResourceKey
	emitted := map[ir.ResourceKey]struct{}{}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].String() < ready[j].String() })
		next := ready[0]
		ready = ready[1:]
		if _, done := emitted[next]; done {
			continue
		}
		order = append(order, next)
		emitted[next] = struct{}{}

		for _, dependent := range g.DependentsOf(next) {
			if _, done := emitted[dependent]; done {
				continue
			}
			delete(remaining[dependent], next)
			if len(remaining[dependent]) == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		cycle := g.findCycle()
		return nil, &CycleError{Cycle: cycle}
	}

	return order, nil
}

// findCycle does a DFS from each unvisited node looking for a back-edge,
// returning the first cycle found as a path of keys.
func (g *DependencyGraph) findCycle() []ir.ResourceKey {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[ir.ResourceKey]int{}
	var path []ir.ResourceKey

	var visit func(k ir.ResourceKey) []ir.ResourceKey
	visit = func(k ir.ResourceKey) []ir.ResourceKey {
		state[k] = visiting
		path = append(path, k)
		for _, target := range g.DependenciesOf(k) {
			switch state[target] {
			case visiting:
				cycleStart := 0
				for i, n := range path {
					if n == target {
						cycleStart = i
						break
					}
				}
				return append(append([]ir.ResourceKey{}, path[cycleStart:]...), target)
			case unvisited:
				if found := visit(target); found != nil {
					return found
				}
			}
		}
		path = path[:len(path)-1]
		state[k] = done
		return nil
	}

	keys := make([]ir.ResourceKey, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, k := range keys {
		if state[k] == unvisited {
			if cyc := visit(k); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// FromResources builds a DependencyGraph by walking every resource's
// DependsOn set, which the resolver populates by collecting Reference
// nodes reachable from attrs (spec.md §9: "do not require users to
// declare depends_on; derive edges by walking attrs").
func FromResources(resources []*ir.Resource) *DependencyGraph {
	g := New()
	for _, r := range resources {
		k := r.Key()
		g.AddNode(k)
		for dep := range r.DependsOn {
			g.AddEdge(k, dep)
		}
	}
	return g
}

// FromStates builds a DependencyGraph by walking every state resource's
// DependsOn set -- the edges apply persisted when it wrote that State --
// for ordering a `carina destroy` run that has no .crn file to re-resolve.
func FromStates(states map[ir.ResourceKey]*ir.State) *DependencyGraph {
	g := New()
	for k, st := range states {
		g.AddNode(k)
		for dep := range st.DependsOn {
			g.AddEdge(k, dep)
		}
	}
	return g
}

// ReverseTopoSort is TopoSort in reverse, the order Deletes must run in.
func (g *DependencyGraph) ReverseTopoSort() ([]ir.ResourceKey, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}
	reversed := make([]ir.ResourceKey, len(order))
	for i, k := range order {
		reversed[len(order)-1-i] = k
	}
	return reversed, nil
}


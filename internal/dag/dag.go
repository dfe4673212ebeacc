// SPDX-License-Identifier: MPL-2.0

// Package dag orders module dependency graphs and reports import cycles.
// It backs `pickup graph --order`, which prints the order in which a bundle
// evaluates its modules when no cycle forces a different one.
package dag

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains at least one cycle, so no
	// topological order exists.
	CycleError struct {
		// Cycles lists every strongly connected component that forms a cycle,
		// each starting at its first-added node.
		Cycles [][]string
	}

	// Graph is a directed graph keyed by module path. An edge from A to B
	// means A must be evaluated before B, i.e. B imports A.
	Graph struct {
		adjacency map[string][]string
		// nodes keeps insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]int
	}
)

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		parts = append(parts, strings.Join(append(slices.Clone(c), c[0]), " -> "))
	}
	return fmt.Sprintf("import cycle detected: %s", strings.Join(parts, "; "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]int),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.nodeSet[name]; ok {
		return
	}
	g.nodeSet[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// AddEdge adds the edge from -> to, adding both nodes when missing.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Successors returns the targets of edges leaving name.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// TopologicalSort returns an order using Kahn's algorithm. Nodes at the same
// level appear in insertion order. A graph with cycles yields *CycleError.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		for _, next := range g.adjacency[node] {
			inDegree[next]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range g.adjacency[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError{Cycles: g.Cycles()}
	}
	return result, nil
}

// Cycles returns every strongly connected component that contains a cycle:
// components with more than one node, and single nodes with a self edge.
// Components are ordered by their first-added node and each component lists
// its members in insertion order.
func (g *Graph) Cycles() [][]string {
	t := tarjan{
		g:       g,
		index:   make(map[string]int, len(g.nodes)),
		lowlink: make(map[string]int, len(g.nodes)),
		onStack: make(map[string]bool, len(g.nodes)),
	}
	for _, node := range g.nodes {
		if _, seen := t.index[node]; !seen {
			t.connect(node)
		}
	}

	var cycles [][]string
	for _, comp := range t.components {
		if len(comp) == 1 && !slices.Contains(g.adjacency[comp[0]], comp[0]) {
			continue
		}
		slices.SortFunc(comp, func(a, b string) int {
			return cmp.Compare(g.nodeSet[a], g.nodeSet[b])
		})
		cycles = append(cycles, comp)
	}
	slices.SortFunc(cycles, func(a, b []string) int {
		return cmp.Compare(g.nodeSet[a[0]], g.nodeSet[b[0]])
	})
	return cycles
}

type tarjan struct {
	g          *Graph
	counter    int
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	components [][]string
}

func (t *tarjan) connect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.adjacency[v] {
		if _, seen := t.index[w]; !seen {
			t.connect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var comp []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, comp)
}

package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/stdlib"
)

// ErrUnresolvedDependency is returned by Build when a declared dependency id
// has no vertex. It indicates inconsistent registry data and aborts the run.
var ErrUnresolvedDependency = errors.New("unresolved dependency")

// Graph is the package dependency graph. See the package comment for the
// structural and mutation invariants.
type Graph struct {
	vertices   []registry.Package
	idToVertex map[uuid.UUID]int
	results    []TestResult

	// out[v] lists v's dependencies; in[v] lists v's reverse-dependents.
	// Both are fixed after Build.
	out [][]int
	in  [][]int
}

// Build constructs the graph for the given registered packages.
//
// Builtins are merged in first: where a registered package shares an id with
// a builtin, the builtin record supersedes it (the registered copy is a
// stale registry artifact). Edges come from the builtin dependency table and
// from each registered package's declared dependencies for its chosen
// version, read through reader. Packages whose dependency data cannot be
// loaded contribute no edges but remain vertices; each one is logged, since
// a silently edge-less vertex can mask an unsatisfiable graph.
func Build(registered []registry.Package, reader registry.MetadataReader) (*Graph, error) {
	builtins := stdlib.Packages()
	builtinIDs := make(map[uuid.UUID]registry.Package, len(builtins))
	for _, b := range builtins {
		builtinIDs[b.ID] = b
	}

	// Registered packages keep their input order; a registered record whose
	// id collides with a builtin is replaced in place by the builtin record.
	// Builtins not referenced that way are appended after.
	consumed := make(map[uuid.UUID]bool)
	var vertices []registry.Package
	for _, p := range registered {
		if b, ok := builtinIDs[p.ID]; ok {
			if !consumed[p.ID] {
				vertices = append(vertices, b)
				consumed[p.ID] = true
			}
			continue
		}
		vertices = append(vertices, p)
	}
	for _, b := range builtins {
		if !consumed[b.ID] {
			vertices = append(vertices, b)
		}
	}

	g := &Graph{
		vertices:   vertices,
		idToVertex: make(map[uuid.UUID]int, len(vertices)),
		results:    make([]TestResult, len(vertices)),
		out:        make([][]int, len(vertices)),
		in:         make([][]int, len(vertices)),
	}
	for v, p := range vertices {
		if prev, dup := g.idToVertex[p.ID]; dup {
			return nil, fmt.Errorf("duplicate package id %s (%q and %q)", p.ID, g.vertices[prev].Name, p.Name)
		}
		g.idToVertex[p.ID] = v
	}

	if err := g.addEdges(reader); err != nil {
		return nil, err
	}
	g.breakCycles()
	g.buildReverseEdges()
	return g, nil
}

func (g *Graph) addEdges(reader registry.MetadataReader) error {
	builtinDeps := stdlib.Dependencies()

	for v, p := range g.vertices {
		var depIDs []uuid.UUID

		if p.IsStdlib() {
			for _, depName := range builtinDeps[p.Name] {
				depIDs = append(depIDs, stdlib.ID(depName))
			}
		} else {
			declared, err := reader.Deps(p)
			if errors.Is(err, registry.ErrNoDependencyData) {
				slog.Warn("package has no loadable dependency data; assuming no dependencies",
					"package", p.Name, "version", p.Version)
				continue
			}
			if err != nil {
				return fmt.Errorf("load dependencies of %q: %w", p.Name, err)
			}
			// Deterministic edge order: sort declared dependency names.
			names := make([]string, 0, len(declared))
			for name := range declared {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				depIDs = append(depIDs, declared[name])
			}
		}

		seen := make(map[int]bool, len(depIDs))
		for _, id := range depIDs {
			w, ok := g.idToVertex[id]
			if !ok {
				return fmt.Errorf("%w: %s declared by %q", ErrUnresolvedDependency, id, p.Name)
			}
			if w == v || seen[w] {
				continue
			}
			seen[w] = true
			g.out[v] = append(g.out[v], w)
		}
	}
	return nil
}

// breakCycles removes the closing edge of every simple cycle reachable in a
// depth-first sweep from vertex 0 upward. A back edge u -> w (w still on the
// DFS stack) closes the cycle w -> ... -> u -> w, so deleting exactly the
// back edges leaves the graph acyclic while every vertex stays reachable
// for testing.
func (g *Graph) breakCycles() {
	const (
		white = iota // unvisited
		gray         // on stack
		black        // finished
	)
	color := make([]int, len(g.vertices))
	removed := make(map[[2]int]bool)

	var visit func(v int)
	visit = func(v int) {
		color[v] = gray
		for _, w := range g.out[v] {
			switch color[w] {
			case white:
				visit(w)
			case gray:
				if !removed[[2]int{v, w}] {
					removed[[2]int{v, w}] = true
					slog.Debug("breaking dependency cycle",
						"from", g.vertices[v].Name, "to", g.vertices[w].Name)
				}
			}
		}
		color[v] = black
	}
	for v := range g.vertices {
		if color[v] == white {
			visit(v)
		}
	}

	if len(removed) == 0 {
		return
	}
	for v := range g.out {
		kept := g.out[v][:0]
		for _, w := range g.out[v] {
			if !removed[[2]int{v, w}] {
				kept = append(kept, w)
			}
		}
		g.out[v] = kept
	}
}

func (g *Graph) buildReverseEdges() {
	for v, deps := range g.out {
		for _, w := range deps {
			g.in[w] = append(g.in[w], v)
		}
	}
}

// Len returns the number of vertices.
func (g *Graph) Len() int { return len(g.vertices) }

// Package returns the package at vertex v.
func (g *Graph) Package(v int) registry.Package { return g.vertices[v] }

// Result returns the current result of vertex v.
func (g *Graph) Result(v int) TestResult { return g.results[v] }

// SetResult records the result of vertex v. Callers are responsible for the
// run's ownership discipline: a worker writes only the vertex it dequeued,
// the scheduler writes only via Skip, and the pre-pass runs before workers
// start.
func (g *Graph) SetResult(v int, r TestResult) { g.results[v] = r }

// Out returns the dependencies of v. The slice is shared; do not mutate.
func (g *Graph) Out(v int) []int { return g.out[v] }

// In returns the reverse-dependents of v. The slice is shared; do not mutate.
func (g *Graph) In(v int) []int { return g.in[v] }

// VertexByID looks a vertex up by package id.
func (g *Graph) VertexByID(id uuid.UUID) (int, bool) {
	v, ok := g.idToVertex[id]
	return v, ok
}

// VertexByName looks a vertex up by package name. Names are not required to
// be unique across registries; the lowest-numbered match wins.
func (g *Graph) VertexByName(name string) (int, bool) {
	for v, p := range g.vertices {
		if p.Name == name {
			return v, true
		}
	}
	return 0, false
}

// Leaves returns the vertices with no dependencies, in ascending order.
func (g *Graph) Leaves() []int {
	var leaves []int
	for v := range g.vertices {
		if len(g.out[v]) == 0 {
			leaves = append(leaves, v)
		}
	}
	return leaves
}

// Counts tallies results by state.
func (g *Graph) Counts() map[TestResult]int {
	counts := make(map[TestResult]int)
	for _, r := range g.results {
		counts[r]++
	}
	return counts
}

// Skip marks v Skipped and recursively skips every reverse-dependent that is
// not already Skipped. Termination follows from acyclicity; each ancestor is
// visited at most once. Any prior result is overwritten: that is the point
// when a failure skips ancestors.
func (g *Graph) Skip(v int) {
	if g.results[v] == Skipped {
		return
	}
	g.results[v] = Skipped
	for _, u := range g.in[v] {
		if g.results[u] != Skipped {
			g.Skip(u)
		}
	}
}

// Ancestors returns the set of distinct reverse-transitive-dependents of v,
// excluding v itself.
func (g *Graph) Ancestors(v int) map[int]bool {
	seen := make(map[int]bool)
	var walk func(int)
	walk = func(w int) {
		for _, u := range g.in[w] {
			if !seen[u] {
				seen[u] = true
				walk(u)
			}
		}
	}
	walk(v)
	delete(seen, v)
	return seen
}

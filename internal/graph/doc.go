// Package graph builds and holds the package dependency graph.
//
// Vertices are packages (registered and runtime-builtin); a directed edge
// u -> v means "u depends on v". The graph is structurally immutable after
// Build: only the per-vertex test results change during a run, and each
// result slot leaves Untested at most once (skip propagation is the single
// sanctioned overwrite).
//
// Build guarantees acyclicity. Declared dependency cycles are legal in the
// source ecosystem but would deadlock the scheduler, so each simple cycle
// found during construction is broken by deleting its closing edge. The
// enumeration order is fixed (depth-first from vertex 0 upward, adjacency
// in insertion order), which makes the broken edge set deterministic for a
// given registry.
package graph

// Package stdlib enumerates the packages that ship with the runtime itself.
//
// Builtins are pre-installed in every runtime image, so the evaluator never
// tests them: the scheduler treats every builtin as pre-passed. They still
// appear as graph vertices because registered packages declare dependency
// edges onto them.
package stdlib

import (
	"sort"

	"github.com/google/uuid"

	"github.com/invenia/pkgeval/internal/registry"
)

// Namespace is the UUID namespace under which builtin package IDs are
// derived. Registries that want to reference a builtin compute the same
// uuid.NewSHA1(Namespace, name) value, so the IDs are stable across hosts
// and releases.
var Namespace = uuid.MustParse("8f7d5a52-9c3e-41d4-9b1a-2f6c88a1d7e4")

// deps lists every builtin and its builtin dependencies. A nil entry means
// the builtin depends on nothing beyond the runtime core.
var deps = map[string][]string{
	"Base64":           nil,
	"CRC32c":           nil,
	"Dates":            {"Printf"},
	"DelimitedFiles":   {"Mmap"},
	"Distributed":      {"Random", "Serialization", "Sockets"},
	"FileWatching":     nil,
	"Future":           {"Random"},
	"InteractiveUtils": {"Markdown"},
	"LibGit2":          {"Printf"},
	"LinearAlgebra":    nil,
	"Logging":          nil,
	"Markdown":         {"Base64"},
	"Mmap":             nil,
	"Pkg":              {"Dates", "LibGit2", "Logging", "Markdown", "Printf", "REPL", "Random", "SHA", "UUIDs"},
	"Printf":           {"Unicode"},
	"Profile":          {"Printf"},
	"REPL":             {"InteractiveUtils", "Markdown", "Sockets"},
	"Random":           {"Serialization", "SHA"},
	"SHA":              nil,
	"Serialization":    nil,
	"SharedArrays":     {"Distributed", "Mmap", "Random", "Serialization"},
	"Sockets":          nil,
	"SparseArrays":     {"LinearAlgebra", "Random"},
	"Statistics":       {"LinearAlgebra", "SparseArrays"},
	"SuiteSparse":      {"LinearAlgebra", "SparseArrays"},
	"Test":             {"Distributed", "InteractiveUtils", "Logging", "Random"},
	"UUIDs":            {"Random", "SHA"},
	"Unicode":          nil,
}

// ID returns the stable identifier of the named builtin. It is defined for
// any name; callers are expected to pass names from Packages.
func ID(name string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(name))
}

// Packages returns the builtin package records, sorted by name. Builtins
// carry no version and no registry: they are identified by the runtime
// installation itself.
func Packages() []registry.Package {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	pkgs := make([]registry.Package, 0, len(names))
	for _, name := range names {
		pkgs = append(pkgs, registry.Package{Name: name, ID: ID(name)})
	}
	return pkgs
}

// Dependencies returns the builtin inter-dependency table by name. The
// returned map is a copy; mutating it does not affect the enumerator.
func Dependencies() map[string][]string {
	out := make(map[string][]string, len(deps))
	for name, ds := range deps {
		out[name] = append([]string(nil), ds...)
	}
	return out
}

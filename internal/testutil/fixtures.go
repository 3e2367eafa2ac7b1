// Package testutil provides fixtures shared across the test suites: an
// on-disk registry writer and a scripted sandbox runner.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/registry"
)

// fixtureNamespace derives deterministic package ids for fixtures, so tests
// can refer to a package's id by name alone.
var fixtureNamespace = uuid.MustParse("3e0f9c1d-6a4b-4c7e-8d2f-5b9a7c0e1f23")

// PackageID returns the deterministic fixture id for a package name.
func PackageID(name string) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(name))
}

// FixturePackage describes one package in a written registry fixture.
type FixturePackage struct {
	Name     string
	Versions []string
	// Deps maps version -> dependency name -> dependency id. Omitted
	// versions get no Deps.yaml entry.
	Deps map[string]map[string]uuid.UUID
}

// WriteRegistry writes a complete registry fixture under dir and returns
// the registry path.
func WriteRegistry(t *testing.T, dir, regName string, pkgs []FixturePackage) string {
	t.Helper()

	descriptor := fmt.Sprintf("name: %s\nuuid: %s\npackages:\n", regName,
		uuid.NewSHA1(fixtureNamespace, []byte("registry:"+regName)))
	for _, p := range pkgs {
		descriptor += fmt.Sprintf("  %s:\n    name: %s\n    path: %s\n", PackageID(p.Name), p.Name, p.Name)
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Registry.yaml"), []byte(descriptor), 0o644))

	for _, p := range pkgs {
		pkgDir := filepath.Join(dir, p.Name)
		require.NoError(t, os.MkdirAll(pkgDir, 0o755))

		versions := ""
		for _, v := range p.Versions {
			versions += fmt.Sprintf("%q:\n  git-tree-sha1: %s\n", v, "0000000000000000000000000000000000000000")
		}
		require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "Versions.yaml"), []byte(versions), 0o644))

		if p.Deps == nil {
			continue
		}
		deps := ""
		for version, entries := range p.Deps {
			deps += fmt.Sprintf("%q:\n", version)
			for name, id := range entries {
				deps += fmt.Sprintf("  %s: %s\n", name, id)
			}
		}
		require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "Deps.yaml"), []byte(deps), 0o644))
	}
	return dir
}

// MapReader is an in-memory MetadataReader for graph construction in tests.
type MapReader map[uuid.UUID]map[string]uuid.UUID

// Deps implements registry.MetadataReader.
func (m MapReader) Deps(pkg registry.Package) (map[string]uuid.UUID, error) {
	deps, ok := m[pkg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNoDependencyData, pkg.Name)
	}
	return deps, nil
}

// BuildGraph constructs a graph from a simple name -> dependency-names
// table. Every named package becomes a registered package at version 1.0.0
// with a deterministic id.
func BuildGraph(t *testing.T, deps map[string][]string) *graph.Graph {
	t.Helper()

	reader := MapReader{}
	var pkgs []registry.Package
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	// Vertex order follows sorted names so tests can rely on it.
	sort.Strings(names)

	for _, name := range names {
		pkgs = append(pkgs, registry.Package{
			Name:         name,
			ID:           PackageID(name),
			Version:      "1.0.0",
			RegistryName: "Fixture",
		})
		entry := map[string]uuid.UUID{}
		for _, dep := range deps[name] {
			entry[dep] = PackageID(dep)
		}
		reader[PackageID(name)] = entry
	}

	g, err := graph.Build(pkgs, reader)
	require.NoError(t, err)
	return g
}

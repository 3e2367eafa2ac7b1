package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// ErrNoDependencyData is returned by a MetadataReader when a package has no
// loadable dependency declarations for its chosen version. Callers treat it
// as "this package contributes no edges", not as a fatal condition.
var ErrNoDependencyData = errors.New("no dependency data")

// MetadataReader yields the declared dependencies of a package for its
// chosen version, as a map from dependency name to dependency ID.
type MetadataReader interface {
	Deps(pkg Package) (map[string]uuid.UUID, error)
}

// depsCacheSize bounds the reader's descriptor cache. Registries top out in
// the low tens of thousands of packages, so this effectively caches a full
// graph build.
const depsCacheSize = 32768

// DirReader reads Deps.yaml descriptors from package metadata directories.
// Parsed files are cached for the lifetime of the reader: a later call for
// the same metadata directory is served from the cache without re-reading
// the file.
type DirReader struct {
	cache *lru.Cache[string, map[string]map[string]string]
}

// NewDirReader creates a DirReader with an empty cache.
func NewDirReader() *DirReader {
	cache, err := lru.New[string, map[string]map[string]string](depsCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &DirReader{cache: cache}
}

// Deps implements MetadataReader.
//
// A missing Deps.yaml, an unparseable one, or one with no entry for the
// package's chosen version all yield ErrNoDependencyData.
func (r *DirReader) Deps(pkg Package) (map[string]uuid.UUID, error) {
	file, err := r.load(pkg.MetadataPath)
	if err != nil {
		return nil, err
	}

	entry, ok := file[pkg.Version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNoDependencyData, pkg.Name, pkg.Version)
	}

	deps := make(map[string]uuid.UUID, len(entry))
	for name, id := range entry {
		depID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("package %q dependency %q: invalid uuid %q: %w", pkg.Name, name, id, err)
		}
		deps[name] = depID
	}
	return deps, nil
}

func (r *DirReader) load(dir string) (map[string]map[string]string, error) {
	if cached, ok := r.cache.Get(dir); ok {
		return cached, nil
	}

	raw, err := os.ReadFile(filepath.Join(dir, "Deps.yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDependencyData, dir)
	}

	var file map[string]map[string]string
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDependencyData, dir, err)
	}

	r.cache.Add(dir, file)
	return file, nil
}

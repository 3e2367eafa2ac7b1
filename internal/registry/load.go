package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// ErrDescriptorMissing is returned by Load when the registry directory does
// not contain a Registry.yaml descriptor.
var ErrDescriptorMissing = errors.New("registry descriptor missing")

// registryDescriptor mirrors the top-level Registry.yaml file.
type registryDescriptor struct {
	Name     string                  `yaml:"name"`
	UUID     string                  `yaml:"uuid"`
	Packages map[string]packageEntry `yaml:"packages"`
}

// packageEntry is one entry in the descriptor's packages map, keyed by the
// package's UUID.
type packageEntry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// versionEntry is one entry in a package's Versions.yaml, keyed by version.
type versionEntry struct {
	GitTreeSHA1 string `yaml:"git-tree-sha1"`
}

// Load reads the Registry.yaml descriptor under path and materialises a
// Registry whose Packages carry their maximum available version.
//
// A missing descriptor is a construction error (ErrDescriptorMissing); a
// package listed in the descriptor whose Versions.yaml is missing or holds
// no usable version is also an error, because such an entry cannot be
// scheduled at all.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(filepath.Join(path, "Registry.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDescriptorMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read registry descriptor: %w", err)
	}

	var desc registryDescriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse registry descriptor: %w", err)
	}
	regID, err := uuid.Parse(desc.UUID)
	if err != nil {
		return nil, fmt.Errorf("registry %q: invalid uuid: %w", desc.Name, err)
	}

	reg := &Registry{Name: desc.Name, ID: regID, Path: path}

	// Sort entries by UUID string so construction is deterministic: the
	// descriptor is a map and YAML gives no ordering guarantee.
	ids := make([]string, 0, len(desc.Packages))
	for id := range desc.Packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := desc.Packages[id]
		pkgID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("registry %q: package %q: invalid uuid %q: %w", desc.Name, entry.Name, id, err)
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("registry %q: package %s has no name", desc.Name, id)
		}

		metaDir := filepath.Join(path, filepath.FromSlash(entry.Path))
		version, err := maxAvailableVersion(metaDir)
		if err != nil {
			return nil, fmt.Errorf("registry %q: package %q: %w", desc.Name, entry.Name, err)
		}

		reg.Packages = append(reg.Packages, Package{
			Name:         entry.Name,
			ID:           pkgID,
			MetadataPath: metaDir,
			Version:      version,
			RegistryName: desc.Name,
		})
	}

	return reg, nil
}

// maxAvailableVersion reads Versions.yaml in dir and returns its semver
// maximum key. Keys that do not parse as semver are ignored.
func maxAvailableVersion(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "Versions.yaml"))
	if err != nil {
		return "", fmt.Errorf("read versions: %w", err)
	}

	var versions map[string]versionEntry
	if err := yaml.Unmarshal(raw, &versions); err != nil {
		return "", fmt.Errorf("parse versions: %w", err)
	}

	best := ""
	for v := range versions {
		if !semver.IsValid("v" + v) {
			continue
		}
		if best == "" || semver.Compare("v"+v, "v"+best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("no usable versions in %s", dir)
	}
	return best, nil
}

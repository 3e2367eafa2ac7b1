package registry

import "github.com/google/uuid"

// Package identifies one unit of software known to the evaluator.
//
// A Package is an immutable value: it is constructed once, during registry
// loading or standard-library enumeration, and never mutated. Equality is
// field-wise (the struct is comparable).
//
// Version and RegistryName are empty for standard-library packages, which
// ship with the runtime and have no registry entry of their own.
type Package struct {
	// Name is the package's human-readable name. Never empty.
	Name string

	// ID is the package's stable 128-bit identifier. Dependency edges in
	// registry metadata refer to packages by ID, not by name.
	ID uuid.UUID

	// MetadataPath is the on-disk directory holding the package's
	// Versions.yaml and Deps.yaml descriptors. Empty for builtins.
	MetadataPath string

	// Version is the semver version chosen for this run (the maximum
	// available version at load time). Empty for builtins.
	Version string

	// RegistryName names the registry this package was loaded from.
	// Empty for builtins.
	RegistryName string
}

// IsStdlib reports whether p is a runtime-builtin package.
func (p Package) IsStdlib() bool {
	return p.RegistryName == "" && p.Version == ""
}

// Registry is a catalogue of packages loaded from an on-disk descriptor.
type Registry struct {
	Name     string
	ID       uuid.UUID
	Path     string
	Packages []Package
}

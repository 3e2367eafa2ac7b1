package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/testutil"
)

func TestLoad_MissingDescriptor(t *testing.T) {
	_, err := registry.Load(t.TempDir())
	require.ErrorIs(t, err, registry.ErrDescriptorMissing)
}

func TestLoad_PicksMaximumVersion(t *testing.T) {
	dir := testutil.WriteRegistry(t, t.TempDir(), "General", []testutil.FixturePackage{
		{Name: "Alpha", Versions: []string{"1.0.0", "0.9.3", "1.2.0", "1.2.0-rc1"}},
	})

	reg, err := registry.Load(dir)
	require.NoError(t, err)
	require.Len(t, reg.Packages, 1)

	pkg := reg.Packages[0]
	assert.Equal(t, "Alpha", pkg.Name)
	assert.Equal(t, "1.2.0", pkg.Version, "release sorts after its prerelease")
	assert.Equal(t, "General", pkg.RegistryName)
	assert.Equal(t, testutil.PackageID("Alpha"), pkg.ID)
	assert.False(t, pkg.IsStdlib())
}

func TestLoad_NoUsableVersionsIsAnError(t *testing.T) {
	dir := testutil.WriteRegistry(t, t.TempDir(), "General", []testutil.FixturePackage{
		{Name: "Alpha", Versions: []string{"not-a-version"}},
	})

	_, err := registry.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable versions")
}

func TestLoad_Deterministic(t *testing.T) {
	pkgs := []testutil.FixturePackage{
		{Name: "Beta", Versions: []string{"2.0.0"}},
		{Name: "Alpha", Versions: []string{"1.0.0"}},
		{Name: "Gamma", Versions: []string{"0.1.0"}},
	}
	dir := testutil.WriteRegistry(t, t.TempDir(), "General", pkgs)

	first, err := registry.Load(dir)
	require.NoError(t, err)
	second, err := registry.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, first.Packages, second.Packages)
}

package sandbox

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invenia/pkgeval/internal/registry"
)

// writeRuntimeArchive writes a minimal runtime tarball (bin/runtime) to
// path and returns its SHA-256.
func writeRuntimeArchive(t *testing.T, path string) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "bin", Typeflag: tar.TypeDir, Mode: 0o755,
	}))
	payload := []byte("#!/bin/sh\nexit 0\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "bin/runtime", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(payload)),
	}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func writeCatalogue(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Versions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalogue_Valid(t *testing.T) {
	sha := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	path := writeCatalogue(t, `
"1.4.2":
  url: https://example.invalid/runtime-1.4.2.tar.gz
  sha: `+sha+`
"1.5.0":
  file: /srv/runtimes/runtime-1.5.0.tar.gz
  sha: `+sha+`
`)

	cat, err := LoadCatalogue(path)
	require.NoError(t, err)
	require.Len(t, cat, 2)
	assert.Equal(t, sha, cat["1.4.2"].SHA)
	assert.Equal(t, "/srv/runtimes/runtime-1.5.0.tar.gz", cat["1.5.0"].File)
}

func TestLoadCatalogue_RejectsBadSHA(t *testing.T) {
	path := writeCatalogue(t, `
"1.4.2":
  url: https://example.invalid/runtime.tar.gz
  sha: nothex
`)

	_, err := LoadCatalogue(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid runtime catalogue")
}

func TestLoadCatalogue_RejectsMissingSource(t *testing.T) {
	sha := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	path := writeCatalogue(t, `
"1.4.2":
  sha: `+sha+`
`)

	_, err := LoadCatalogue(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of url and file")
}

func TestLoadCatalogue_RejectsBothSources(t *testing.T) {
	sha := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	path := writeCatalogue(t, `
"1.4.2":
  url: https://example.invalid/runtime.tar.gz
  file: /srv/runtime.tar.gz
  sha: `+sha+`
`)

	_, err := LoadCatalogue(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of url and file")
}

func TestInstall_UnknownVersion(t *testing.T) {
	_, err := Install(context.Background(), Catalogue{}, "9.9.9", t.TempDir())
	require.ErrorIs(t, err, ErrVersionNotCatalogued)
}

func TestInstall_FromLocalFile(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "runtime.tar.gz")
	sha := writeRuntimeArchive(t, archive)
	root := t.TempDir()
	cat := Catalogue{"1.4.2": {File: archive, SHA: sha}}

	inst, err := Install(context.Background(), cat, "1.4.2", root)
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", inst.Version)
	assert.Equal(t, filepath.Join(root, "1.4.2"), inst.Dir)

	entry := filepath.Join(inst.Dir, "bin", "runtime")
	info, err := os.Stat(entry)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// The source archive must still exist: only downloads are temporary.
	_, err = os.Stat(archive)
	require.NoError(t, err)
}

func TestInstall_Idempotent(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "runtime.tar.gz")
	sha := writeRuntimeArchive(t, archive)
	root := t.TempDir()
	cat := Catalogue{"1.4.2": {File: archive, SHA: sha}}

	first, err := Install(context.Background(), cat, "1.4.2", root)
	require.NoError(t, err)

	// A second install reuses the unpacked directory even if the archive
	// has vanished in the meantime.
	require.NoError(t, os.Remove(archive))
	second, err := Install(context.Background(), cat, "1.4.2", root)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInstall_ChecksumMismatch(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "runtime.tar.gz")
	writeRuntimeArchive(t, archive)
	cat := Catalogue{"1.4.2": {
		File: archive,
		SHA:  "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}}

	_, err := Install(context.Background(), cat, "1.4.2", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestTestArgs(t *testing.T) {
	args := TestArgs(registry.Package{Name: "Alpha"})
	assert.Equal(t, []string{"test", "--package", "Alpha"}, args)
}

func TestBubblewrapRunner_MissingSandboxBinary(t *testing.T) {
	r := &BubblewrapRunner{Bwrap: filepath.Join(t.TempDir(), "no-such-bwrap")}
	work := t.TempDir()

	ok, err := r.Run(context.Background(), RunSpec{
		WorkDir:    work,
		RuntimeDir: t.TempDir(),
		Args:       []string{"test", "--package", "Alpha"},
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
	})
	assert.False(t, ok)
	require.Error(t, err, "a missing sandbox binary is infrastructure failure, not a test failure")
}

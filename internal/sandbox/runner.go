package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/invenia/pkgeval/internal/registry"
)

const (
	// RuntimeMount is the fixed in-sandbox path of the runtime installation.
	RuntimeMount = "/opt/runtime"

	// WorkMount is the fixed in-sandbox path of the per-package work dir.
	WorkMount = "/work"
)

// RunSpec describes one sandboxed test invocation.
type RunSpec struct {
	// WorkDir is the host directory mounted writable at WorkMount and used
	// as the child's working directory.
	WorkDir string

	// RuntimeDir is the host runtime installation, mounted read-only at
	// RuntimeMount.
	RuntimeDir string

	// Args are passed to the runtime entry point.
	Args []string

	// Stdout and Stderr receive the child's combined output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes one test suite invocation.
//
// ok is false when the suite failed (non-zero child exit). err is non-nil
// only for infrastructure failures; a returned error implies ok is false.
// Cancellation of ctx kills the child; the resulting exit is reported as a
// failure unless the caller inspects ctx itself.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (ok bool, err error)
}

// TestArgs returns the runtime entry-point arguments that run pkg's tests.
func TestArgs(pkg registry.Package) []string {
	return []string{"test", "--package", pkg.Name}
}

// BubblewrapRunner isolates the child with bubblewrap: a user namespace, a
// fresh /dev (which provides /dev/pts), a tmpfs /dev/shm, a private
// /etc/hosts, the runtime read-only at RuntimeMount, and the work dir
// writable at WorkMount. The host filesystem is visible read-only so the
// runtime's shared libraries resolve.
type BubblewrapRunner struct {
	// Bwrap is the bubblewrap binary to execute. Defaults to "bwrap" on
	// PATH when empty.
	Bwrap string
}

func (r *BubblewrapRunner) bwrap() string {
	if r.Bwrap != "" {
		return r.Bwrap
	}
	return "bwrap"
}

// Run implements Runner.
func (r *BubblewrapRunner) Run(ctx context.Context, spec RunSpec) (bool, error) {
	hosts := filepath.Join(spec.WorkDir, "hosts")
	if err := os.WriteFile(hosts, []byte("127.0.0.1\tlocalhost\n"), 0o644); err != nil {
		return false, fmt.Errorf("write sandbox hosts file: %w", err)
	}

	argv := []string{
		"--unshare-user", "--unshare-pid", "--unshare-ipc", "--unshare-uts",
		"--die-with-parent",
		"--ro-bind", "/", "/",
		"--dev", "/dev",
		"--tmpfs", "/dev/shm",
		"--ro-bind", hosts, "/etc/hosts",
		"--ro-bind", spec.RuntimeDir, RuntimeMount,
		"--bind", spec.WorkDir, WorkMount,
		"--chdir", WorkMount,
		filepath.Join(RuntimeMount, "bin", "runtime"),
	}
	argv = append(argv, spec.Args...)

	cmd := exec.CommandContext(ctx, r.bwrap(), argv...)
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The suite ran and failed (or was killed on cancellation); the
		// log carries the diagnostics.
		return false, nil
	}
	return false, fmt.Errorf("spawn sandbox: %w", err)
}

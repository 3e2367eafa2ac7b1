package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/invenia/pkgeval/internal/sandbox"
)

// StubRunner is a deterministic sandbox.Runner for scheduler tests.
//
// Outcomes are scripted by package name: names in Fail report a failed
// suite, names in Hang block until the context is cancelled (exercising the
// timeout path), names in Err report an infrastructure error, and
// everything else passes. Invocations are recorded in order.
type StubRunner struct {
	Fail map[string]bool
	Hang map[string]bool
	Err  map[string]bool

	mu    sync.Mutex
	calls []string
}

// Run implements sandbox.Runner.
func (r *StubRunner) Run(ctx context.Context, spec sandbox.RunSpec) (bool, error) {
	name := packageFromArgs(spec.Args)

	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()

	if r.Hang[name] {
		<-ctx.Done()
		return false, nil
	}
	if r.Err[name] {
		return false, fmt.Errorf("stub sandbox error for %s", name)
	}
	if r.Fail[name] {
		fmt.Fprintf(spec.Stderr, "test suite of %s failed\n", name)
		return false, nil
	}
	fmt.Fprintf(spec.Stdout, "test suite of %s passed\n", name)
	return true, nil
}

// Calls returns the package names run so far, in invocation order.
func (r *StubRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// packageFromArgs recovers the package name from sandbox.TestArgs output.
func packageFromArgs(args []string) string {
	for i, a := range args {
		if a == "--package" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

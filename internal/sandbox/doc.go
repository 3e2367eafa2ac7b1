// Package sandbox runs package test suites in isolation and materialises
// runtime installations for them to run against.
//
// The Runner interface is the seam between the scheduler and the outside
// world: production uses BubblewrapRunner, which executes the runtime's
// entry point inside a user-namespace sandbox, and tests substitute a
// deterministic stub. A test failure is a result, not an error: Run
// returns ok=false for a non-zero child exit and reserves its error return
// for infrastructure problems (sandbox missing, spawn failure).
package sandbox

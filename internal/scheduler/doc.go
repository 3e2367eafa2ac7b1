// Package scheduler runs the dependency-aware parallel evaluation.
//
// ARCHITECTURE:
//
// N+2 goroutines share one Scheduler value under a single supervising
// errgroup:
//
//   - N workers pop ready vertices from the frontier heap, run the package's
//     test suite in the sandbox, record Passed/Failed/TimedOut, and publish
//     the vertex on the completion queue.
//   - One scheduler loop consumes completions. It is the only goroutine
//     that admits vertices to the frontier and the only one that runs skip
//     propagation. Serialising those two mutations is the correctness
//     spine: the last dependency to finish is the one completion event that
//     observes "all dependencies processed and passed", so a vertex is
//     admitted exactly once, race-free.
//   - One reporter redraws the progress display about once a second and
//     detects termination (frontier empty, all workers idle, no completion
//     in flight).
//
// Mutation discipline:
//
//   - Once tasks start, vertices are pushed onto the frontier heap only by
//     the scheduler loop (workers only pop from it), and the result slots
//     of completed vertices are mutated only by the scheduler loop.
//   - running[i] is mutated only by worker i.
//   - A worker writes the result slot of the one vertex it dequeued, and
//     only to move it out of Untested.
//   - Everything shared is guarded by one mutex with one condition
//     variable; the completion queue has its own internal lock so workers
//     never block on a full channel.
//
// Shutdown is idempotent: Stop sets the done flag, wakes every waiter,
// cancels the sandbox context (best-effort kill of in-flight children), and
// pushes the sentinel that ends the scheduler loop. It runs on normal
// termination, on the first task error, and on interrupt.
package scheduler

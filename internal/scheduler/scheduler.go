package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/policy"
	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/sandbox"
)

// DefaultTimeout bounds one package's test run. Suites that exceed it are
// recorded TimedOut and their reverse-dependents are skipped, exactly as
// for a failure.
const DefaultTimeout = 45 * time.Minute

// Config parameterises a run.
type Config struct {
	// Workers is the number of concurrent sandbox slots. Must be >= 1.
	Workers int

	// Runner executes test suites. Tests substitute a stub.
	Runner sandbox.Runner

	// Runtime is the pre-installed runtime the suites run against.
	Runtime sandbox.Installation

	// LogDir receives one <package>.log per tested package. Created by Run.
	LogDir string

	// WorkRoot holds the per-package sandbox work directories.
	WorkRoot string

	// Timeout is the per-package test timeout. DefaultTimeout when zero.
	Timeout time.Duration

	// Progress receives the redrawn progress display. os.Stdout when nil.
	Progress ProgressWriter

	// ReportInterval overrides the reporter's tick. One second when zero.
	ReportInterval time.Duration
}

// workerSlot is one worker lane's published status. vertex is -1 when the
// lane is idle.
type workerSlot struct {
	vertex  int
	pkg     registry.Package
	started time.Time
}

func idleSlot() workerSlot { return workerSlot{vertex: -1} }

// Scheduler owns all shared run state. One mutex guards the mutable
// fields; see the package comment for who mutates what.
type Scheduler struct {
	g   *graph.Graph
	cfg Config

	mu        sync.Mutex
	cond      *sync.Cond
	queue     readyHeap
	running   []workerSlot
	processed map[int]bool

	// pending counts completions published but not yet fully handled by
	// the scheduler loop. Termination is: frontier empty, all workers
	// idle, pending zero.
	pending int

	done     bool
	signaled bool

	completed *completionQueue
	stopped   chan struct{}
	cancel    context.CancelFunc
}

// New creates a Scheduler over g. The graph must be freshly built: every
// result slot Untested.
func New(g *graph.Graph, cfg Config) (*Scheduler, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("scheduler needs at least one worker, got %d", cfg.Workers)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("scheduler needs a sandbox runner")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Scheduler{
		g:         g,
		cfg:       cfg,
		running:   make([]workerSlot, cfg.Workers),
		processed: make(map[int]bool, g.Len()),
		completed: newCompletionQueue(),
		stopped:   make(chan struct{}),
	}
	for i := range s.running {
		s.running[i] = idleSlot()
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Run executes the evaluation and blocks until it terminates. On normal
// termination it returns nil; on interrupt it returns the context error;
// any task failure is returned after global shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if s.cfg.WorkRoot != "" {
		if err := os.MkdirAll(s.cfg.WorkRoot, 0o755); err != nil {
			return fmt.Errorf("create work root: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	s.prepass()

	// Interrupt path: a cancelled parent context must wake workers parked
	// on the condition variable.
	go func() {
		select {
		case <-runCtx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	grp, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < s.cfg.Workers; i++ {
		grp.Go(func() error { return s.worker(gctx, i) })
	}
	grp.Go(func() error { return s.schedule(gctx) })
	grp.Go(func() error { return s.report(gctx) })

	err := grp.Wait()
	s.Stop()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// prepass seeds the run before any task starts: builtins and allow-listed
// packages are pre-passed and published as completions (so the scheduler
// loop releases their reverse-dependents), deny-listed packages skip
// themselves and their ancestors, and the surviving true leaves form the
// initial frontier.
func (s *Scheduler) prepass() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prepassed []int
	for v := 0; v < s.g.Len(); v++ {
		pkg := s.g.Package(v)
		if pkg.IsStdlib() || policy.Allowed(pkg.Name) {
			s.g.SetResult(v, graph.Passed)
			prepassed = append(prepassed, v)
		}
	}

	for v := 0; v < s.g.Len(); v++ {
		if policy.Denied(s.g.Package(v).Name) && s.g.Result(v) != graph.Passed {
			s.g.Skip(v)
		}
	}

	for _, v := range s.g.Leaves() {
		if s.g.Result(v) == graph.Untested {
			heap.Push(&s.queue, v)
		}
	}

	for _, v := range prepassed {
		s.pending++
		s.completed.Enqueue(v)
	}
}

// worker is one of the N sandbox lanes.
func (s *Scheduler) worker(ctx context.Context, i int) error {
	for {
		s.mu.Lock()
		for !s.done && s.queue.Len() == 0 {
			s.cond.Wait()
		}
		if s.done {
			s.mu.Unlock()
			return nil
		}
		v := heap.Pop(&s.queue).(int)
		pkg := s.g.Package(v)
		s.running[i] = workerSlot{vertex: v, pkg: pkg, started: time.Now()}
		s.mu.Unlock()

		result := s.runOne(ctx, pkg)

		s.mu.Lock()
		s.g.SetResult(v, result)
		s.running[i] = idleSlot()
		s.pending++
		s.mu.Unlock()
		s.completed.Enqueue(v)
	}
}

// runOne executes one package's test suite and maps the outcome onto a
// result. A runner error is a test failure with the cause in the log, not
// an infrastructure abort: one broken sandbox invocation must not take the
// whole run down.
func (s *Scheduler) runOne(ctx context.Context, pkg registry.Package) graph.TestResult {
	logPath := filepath.Join(s.cfg.LogDir, pkg.Name+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("cannot create package log", "package", pkg.Name, "error", err)
		return graph.Failed
	}
	defer logFile.Close()

	workDir := filepath.Join(s.cfg.WorkRoot, pkg.Name)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		fmt.Fprintf(logFile, "pkgeval: cannot create work dir: %v\n", err)
		return graph.Failed
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ok, err := s.cfg.Runner.Run(tctx, sandbox.RunSpec{
		WorkDir:    workDir,
		RuntimeDir: s.cfg.Runtime.Dir,
		Args:       sandbox.TestArgs(pkg),
		Stdout:     logFile,
		Stderr:     logFile,
	})

	switch {
	case tctx.Err() == context.DeadlineExceeded:
		fmt.Fprintf(logFile, "pkgeval: test run exceeded %s\n", s.cfg.Timeout)
		return graph.TimedOut
	case err != nil:
		fmt.Fprintf(logFile, "pkgeval: sandbox error: %v\n", err)
		slog.Warn("sandbox error", "package", pkg.Name, "error", err)
		return graph.Failed
	case ok:
		return graph.Passed
	default:
		return graph.Failed
	}
}

// schedule is the single scheduler loop: the only goroutine that admits
// vertices and propagates skips.
func (s *Scheduler) schedule(ctx context.Context) error {
	for {
		v, ok := s.completed.Dequeue(ctx)
		if !ok || v == sentinel {
			return nil
		}

		s.mu.Lock()
		s.processed[v] = true
		if s.g.Result(v) == graph.Passed {
			for _, u := range s.g.In(v) {
				if s.readyLocked(u) {
					heap.Push(&s.queue, u)
				}
			}
		} else {
			for _, u := range s.g.In(v) {
				s.g.Skip(u)
			}
		}
		s.cond.Broadcast()
		s.pending--
		s.mu.Unlock()
	}
}

// readyLocked reports whether u can join the frontier: not yet completed,
// still Untested, and every dependency processed with result Passed.
// Reading results only for processed vertices is what makes the check a
// consistent snapshot: processed is mutated by this goroutine alone.
func (s *Scheduler) readyLocked(u int) bool {
	if s.processed[u] || s.g.Result(u) != graph.Untested {
		return false
	}
	for _, w := range s.g.Out(u) {
		if !s.processed[w] || s.g.Result(w) != graph.Passed {
			return false
		}
	}
	return true
}

// Stop initiates global shutdown. Idempotent; safe from any goroutine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.signaled = true
	close(s.stopped)
	s.cond.Broadcast()
	s.mu.Unlock()

	// Interrupt in-flight sandbox children (best effort; the runner kills
	// its child on context cancellation), then end the scheduler loop.
	if s.cancel != nil {
		s.cancel()
	}
	s.completed.Enqueue(sentinel)
}

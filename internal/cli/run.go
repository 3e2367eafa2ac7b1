package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/report"
	"github.com/invenia/pkgeval/internal/results"
	"github.com/invenia/pkgeval/internal/sandbox"
	"github.com/invenia/pkgeval/internal/scheduler"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RuntimeVersion string
	CataloguePath  string
	Workers        int
	LogDir         string
	WorkDir        string
	InstallRoot    string
	Database       string
	Timeout        time.Duration
	Bwrap          string

	// Runner overrides the sandbox runner (for testing). BubblewrapRunner
	// when nil.
	Runner sandbox.Runner
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <registry-dir>",
		Short: "Evaluate every registered package against a runtime version",
		Long: `Evaluate every package in a registry against a runtime version.

The registry's dependency graph is built, the requested runtime version is
installed from the catalogue, and each package's test suite runs in an
isolated sandbox. Packages are scheduled dependency-first: a package runs
only once all of its dependencies passed, and a failure skips every
package that transitively depends on it.

Example:
  pkgeval run --runtime 1.4.2 --catalogue ./Versions.yaml ./registries/General
  pkgeval run --runtime 1.4.2 --workers 16 --db ./results.db ./registries/General`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.RuntimeVersion, "runtime", "", "runtime version to evaluate against (required)")
	_ = cmd.MarkFlagRequired("runtime")
	cmd.Flags().StringVar(&opts.CataloguePath, "catalogue", "Versions.yaml", "path to the runtime-version catalogue")
	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "number of concurrent sandbox slots")
	cmd.Flags().StringVar(&opts.LogDir, "logs", "", "log directory (default logs/<runtime-version>)")
	cmd.Flags().StringVar(&opts.WorkDir, "work", envOr("PKGEVAL_WORKDIR", ""), "work directory root (default a temp dir)")
	cmd.Flags().StringVar(&opts.InstallRoot, "install-root", "runtimes", "directory runtime versions are unpacked under")
	cmd.Flags().StringVar(&opts.Database, "db", "", "write results to this SQLite database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", scheduler.DefaultTimeout, "per-package test timeout")
	cmd.Flags().StringVar(&opts.Bwrap, "bwrap", envOr("PKGEVAL_BWRAP", ""), "bubblewrap binary (default bwrap on PATH)")

	return cmd
}

func runEvaluation(cmd *cobra.Command, opts *RunOptions, registryDir string) error {
	configureLogging(opts.Verbose)
	started := time.Now()

	reg, err := registry.Load(registryDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load registry", err)
	}
	slog.Info("registry loaded", "name", reg.Name, "packages", len(reg.Packages))

	g, err := graph.Build(reg.Packages, registry.NewDirReader())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build dependency graph", err)
	}
	slog.Info("dependency graph built", "vertices", g.Len())

	// Interrupt handling: first signal cancels the context, which the
	// scheduler turns into a global shutdown.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cat, err := sandbox.LoadCatalogue(opts.CataloguePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load runtime catalogue", err)
	}
	inst, err := sandbox.Install(ctx, cat, opts.RuntimeVersion, opts.InstallRoot)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to install runtime", err)
	}

	logDir := opts.LogDir
	if logDir == "" {
		logDir = filepath.Join("logs", inst.Version)
	}
	workRoot := opts.WorkDir
	if workRoot == "" {
		workRoot, err = os.MkdirTemp("", "pkgeval-work-")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create work dir", err)
		}
		defer os.RemoveAll(workRoot)
	}

	runner := opts.Runner
	if runner == nil {
		runner = &sandbox.BubblewrapRunner{Bwrap: opts.Bwrap}
	}

	sched, err := scheduler.New(g, scheduler.Config{
		Workers:  opts.Workers,
		Runner:   runner,
		Runtime:  inst,
		LogDir:   logDir,
		WorkRoot: workRoot,
		Timeout:  opts.Timeout,
		Progress: cmd.OutOrStdout(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create scheduler", err)
	}

	slog.Info("evaluation starting",
		"runtime", inst.Version, "workers", opts.Workers, "logs", logDir)
	err = sched.Run(ctx)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return WrapExitError(ExitFailure, "evaluation aborted", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Summary(g))
	impacts := report.Rank(g)
	if len(impacts) > 0 {
		fmt.Fprintln(out)
		report.Render(out, impacts)
	}

	if opts.Database != "" {
		if err := persistRun(ctx, opts.Database, inst.Version, started, g, logDir); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist results", err)
		}
		slog.Info("results persisted", "db", opts.Database)
	}

	if interrupted {
		return NewExitError(ExitFailure, "evaluation interrupted")
	}
	return nil
}

func persistRun(ctx context.Context, path, version string, started time.Time, g *graph.Graph, logDir string) error {
	// The run context may already be cancelled when we get here after an
	// interrupt; persist with a fresh context so partial results survive.
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	st, err := results.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing results database", "error", closeErr)
		}
	}()

	_, err = st.WriteRun(ctx, results.Run{
		RuntimeVersion: version,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}, g, logDir)
	return err
}

func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

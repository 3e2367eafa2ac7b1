package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/report"
	"github.com/invenia/pkgeval/internal/results"
)

// RankOptions holds flags for the rank command.
type RankOptions struct {
	*RootOptions
	Database string
}

// rankedImpact is the JSON shape of one ranking entry.
type rankedImpact struct {
	Package string `json:"package"`
	Version string `json:"version,omitempty"`
	Result  string `json:"result"`
	Blocked int    `json:"blocked"`
}

// NewRankCommand creates the rank command.
func NewRankCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RankOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rank <registry-dir>",
		Short: "Rank a run's failures by reverse-dependency impact",
		Long: `Rank failed packages from a persisted run by how many packages
transitively depend on them. The ordering hints at which fixes unblock the
most of the ecosystem.

Example:
  pkgeval rank --db ./results.db ./registries/General`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "results database to rank (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRank(cmd *cobra.Command, opts *RankOptions, registryDir string) error {
	configureLogging(opts.Verbose)

	reg, err := registry.Load(registryDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load registry", err)
	}
	g, err := graph.Build(reg.Packages, registry.NewDirReader())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build dependency graph", err)
	}

	st, err := results.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open results database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := st.LatestRun(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results database", err)
	}
	stored, err := st.Results(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results database", err)
	}

	// Replay the persisted outcomes onto the rebuilt graph. Packages added
	// to the registry since the run simply stay Untested.
	for id, r := range stored {
		if v, ok := g.VertexByID(id); ok {
			g.SetResult(v, r)
		}
	}

	impacts := report.Rank(g)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		ranked := make([]rankedImpact, 0, len(impacts))
		for _, imp := range impacts {
			ranked = append(ranked, rankedImpact{
				Package: imp.Package.Name,
				Version: imp.Package.Version,
				Result:  imp.Result.String(),
				Blocked: imp.Blocked,
			})
		}
		return formatter.Success(map[string]interface{}{
			"runtime_version": run.RuntimeVersion,
			"failures":        ranked,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run of runtime %s (%s)\n\n", run.RuntimeVersion, run.FinishedAt.Format("2006-01-02 15:04"))
	report.Render(&b, impacts)
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}

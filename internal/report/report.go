// Package report ranks the failures of a completed run by ecosystem impact.
package report

import (
	"fmt"
	"io"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/registry"
)

// Impact is one failed package and the number of distinct packages that
// transitively depend on it, i.e. the count of packages a fix would unblock.
type Impact struct {
	Package registry.Package
	Result  graph.TestResult
	Blocked int
}

// Rank returns every Failed or TimedOut vertex ordered by descending
// Blocked count. Ties are broken by collated package name so the ordering
// is stable across runs and hosts.
func Rank(g *graph.Graph) []Impact {
	var impacts []Impact
	for v := 0; v < g.Len(); v++ {
		r := g.Result(v)
		if r != graph.Failed && r != graph.TimedOut {
			continue
		}
		impacts = append(impacts, Impact{
			Package: g.Package(v),
			Result:  r,
			Blocked: len(g.Ancestors(v)),
		})
	}

	coll := collate.New(language.English)
	sort.SliceStable(impacts, func(i, j int) bool {
		if impacts[i].Blocked != impacts[j].Blocked {
			return impacts[i].Blocked > impacts[j].Blocked
		}
		return coll.CompareString(impacts[i].Package.Name, impacts[j].Package.Name) < 0
	})
	return impacts
}

// Render writes the ranking as an aligned text table.
func Render(w io.Writer, impacts []Impact) {
	if len(impacts) == 0 {
		fmt.Fprintln(w, "No failures.")
		return
	}

	nameWidth := len("PACKAGE")
	for _, imp := range impacts {
		if len(imp.Package.Name) > nameWidth {
			nameWidth = len(imp.Package.Name)
		}
	}

	fmt.Fprintf(w, "%-*s  %-9s  %s\n", nameWidth, "PACKAGE", "RESULT", "BLOCKED")
	for _, imp := range impacts {
		fmt.Fprintf(w, "%-*s  %-9s  %d\n", nameWidth, imp.Package.Name, imp.Result, imp.Blocked)
	}
}

// Summary renders the final counters line of a run.
func Summary(g *graph.Graph) string {
	counts := g.Counts()
	return fmt.Sprintf("Success: %d Failed: %d Timeout: %d Skipped: %d Untested: %d",
		counts[graph.Passed], counts[graph.Failed], counts[graph.TimedOut],
		counts[graph.Skipped], counts[graph.Untested])
}

package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/invenia/pkgeval/internal/graph"
)

// ProgressWriter is where the reporter draws. Satisfied by *os.File and by
// bytes.Buffer in tests.
type ProgressWriter interface {
	io.Writer
}

var (
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
)

// snapshot is one coherent view of run progress, taken under the mutex.
type snapshot struct {
	counts   map[graph.TestResult]int
	frontier int
	workers  []workerSlot
	now      time.Time
	finished bool
}

func (s *Scheduler) snapshotLocked() snapshot {
	snap := snapshot{
		counts:   s.g.Counts(),
		frontier: s.queue.Len(),
		workers:  append([]workerSlot(nil), s.running...),
		now:      time.Now(),
	}
	idle := true
	for _, w := range snap.workers {
		if w.vertex != -1 {
			idle = false
			break
		}
	}
	snap.finished = snap.frontier == 0 && idle && s.pending == 0
	return snap
}

// report is the progress reporter task. It redraws the display roughly
// once a second and, when it observes a quiescent scheduler (empty
// frontier, idle workers, no completion in flight), triggers shutdown and
// returns.
func (s *Scheduler) report(ctx context.Context) error {
	out := s.cfg.Progress
	if out == nil {
		out = os.Stdout
	}
	interval := s.cfg.ReportInterval
	if interval == 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	drawn := 0
	for {
		s.mu.Lock()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		drawn = s.draw(out, snap, drawn)

		if snap.finished {
			s.Stop()
			return nil
		}

		select {
		case <-ticker.C:
		case <-s.stopped:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// draw clears the previously drawn block with CSI cursor-up/erase-line and
// rewrites it. Returns the number of lines drawn, which the next call must
// pass back in.
func (s *Scheduler) draw(out io.Writer, snap snapshot, prevLines int) int {
	var b strings.Builder
	if prevLines > 0 {
		fmt.Fprintf(&b, "\x1b[%dA", prevLines)
	}

	b.WriteString("\x1b[2K")
	fmt.Fprintf(&b, "Success: %s Failed: %s Timeout: %s Skipped: %s Frontier: %d Remaining: %d\n",
		passedStyle.Render(fmt.Sprint(snap.counts[graph.Passed])),
		failedStyle.Render(fmt.Sprint(snap.counts[graph.Failed])),
		failedStyle.Render(fmt.Sprint(snap.counts[graph.TimedOut])),
		skippedStyle.Render(fmt.Sprint(snap.counts[graph.Skipped])),
		snap.frontier,
		snap.counts[graph.Untested],
	)

	for i, w := range snap.workers {
		b.WriteString("\x1b[2K")
		if w.vertex == -1 {
			fmt.Fprintf(&b, "Worker %d: %s\n", i+1, idleStyle.Render("idle"))
		} else {
			elapsed := snap.now.Sub(w.started).Round(time.Second)
			fmt.Fprintf(&b, "Worker %d: %s running for %s\n",
				i+1, runningStyle.Render(w.pkg.Name), elapsed)
		}
	}

	io.WriteString(out, b.String())
	return 1 + len(snap.workers)
}

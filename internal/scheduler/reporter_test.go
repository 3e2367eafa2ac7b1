package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invenia/pkgeval/internal/graph"
	"github.com/invenia/pkgeval/internal/registry"
	"github.com/invenia/pkgeval/internal/testutil"
)

func TestDraw_SummaryAndWorkerLines(t *testing.T) {
	g := testutil.BuildGraph(t, map[string][]string{"Alpha": nil})
	s := newTestScheduler(t, g, 2, &testutil.StubRunner{}, 0)

	now := time.Now()
	snap := snapshot{
		counts: map[graph.TestResult]int{
			graph.Passed:   12,
			graph.Failed:   3,
			graph.TimedOut: 1,
			graph.Skipped:  5,
			graph.Untested: 40,
		},
		frontier: 4,
		now:      now,
		workers: []workerSlot{
			idleSlot(),
			{vertex: 7, pkg: registry.Package{Name: "FooPkg"}, started: now.Add(-12 * time.Second)},
		},
	}

	var buf bytes.Buffer
	lines := s.draw(&buf, snap, 0)
	assert.Equal(t, 3, lines)

	out := buf.String()
	assert.Contains(t, out, "Success: 12")
	assert.Contains(t, out, "Failed: 3")
	assert.Contains(t, out, "Timeout: 1")
	assert.Contains(t, out, "Skipped: 5")
	assert.Contains(t, out, "Frontier: 4")
	assert.Contains(t, out, "Remaining: 40")
	assert.Contains(t, out, "Worker 1: idle")
	assert.Contains(t, out, "Worker 2: FooPkg running for 12s")
}

func TestDraw_RedrawsInPlace(t *testing.T) {
	g := testutil.BuildGraph(t, map[string][]string{"Alpha": nil})
	s := newTestScheduler(t, g, 1, &testutil.StubRunner{}, 0)

	snap := snapshot{
		counts:  map[graph.TestResult]int{},
		workers: []workerSlot{idleSlot()},
		now:     time.Now(),
	}

	var buf bytes.Buffer
	lines := s.draw(&buf, snap, 0)
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b[2K"), "first frame erases lines but does not move the cursor")

	buf.Reset()
	s.draw(&buf, snap, lines)
	assert.True(t, strings.HasPrefix(buf.String(), "\x1b[2A"), "redraw moves the cursor up over the previous block")
	assert.Contains(t, buf.String(), "\x1b[2K")
}

func TestSnapshot_FinishedOnlyWhenQuiescent(t *testing.T) {
	g := testutil.BuildGraph(t, map[string][]string{"Alpha": nil})
	s := newTestScheduler(t, g, 1, &testutil.StubRunner{}, 0)

	s.mu.Lock()
	snap := s.snapshotLocked()
	require.True(t, snap.finished, "fresh scheduler with no pending work is quiescent")

	s.pending++
	snap = s.snapshotLocked()
	assert.False(t, snap.finished, "pending completion keeps the run alive")
	s.pending--

	s.running[0] = workerSlot{vertex: 3, pkg: registry.Package{Name: "Busy"}, started: time.Now()}
	snap = s.snapshotLocked()
	assert.False(t, snap.finished, "busy worker keeps the run alive")
	s.mu.Unlock()
}

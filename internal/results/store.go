// Package results persists per-run outcomes to SQLite.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/invenia/pkgeval/internal/graph"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoRuns is returned by LatestRun on an empty database.
var ErrNoRuns = errors.New("results database holds no runs")

// Store is a handle on a results database.
// SQLite supports one writer at a time, so the connection pool is pinned
// to a single connection.
type Store struct {
	db *sql.DB
}

// Run is one persisted evaluation.
type Run struct {
	ID             int64
	RuntimeVersion string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Open creates or opens the results database at path and applies the
// schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply results schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteRun records one completed evaluation: the run row plus one result
// row per graph vertex, in a single transaction.
func (s *Store) WriteRun(ctx context.Context, run Run, g *graph.Graph, logDir string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin results transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (runtime_version, started_at, finished_at) VALUES (?, ?, ?)`,
		run.RuntimeVersion,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO package_results (run_id, package_uuid, name, version, result, log_path)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for v := 0; v < g.Len(); v++ {
		pkg := g.Package(v)
		logPath := ""
		r := g.Result(v)
		if r == graph.Passed || r == graph.Failed || r == graph.TimedOut {
			if !pkg.IsStdlib() {
				logPath = filepath.Join(logDir, pkg.Name+".log")
			}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, pkg.ID.String(), pkg.Name, pkg.Version, r.String(), logPath); err != nil {
			return 0, fmt.Errorf("insert result for %q: %w", pkg.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit results: %w", err)
	}
	return runID, nil
}

// LatestRun returns the most recently written run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, runtime_version, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT 1`)

	var run Run
	var started, finished string
	err := row.Scan(&run.ID, &run.RuntimeVersion, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return Run{}, fmt.Errorf("parse run start time: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
		return Run{}, fmt.Errorf("parse run finish time: %w", err)
	}
	return run, nil
}

// Results returns the per-package outcomes of a run, keyed by package id.
func (s *Store) Results(ctx context.Context, runID int64) (map[uuid.UUID]graph.TestResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT package_uuid, result FROM package_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]graph.TestResult)
	for rows.Next() {
		var rawID, rawResult string
		if err := rows.Scan(&rawID, &rawResult); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("result row has invalid uuid %q: %w", rawID, err)
		}
		r, ok := graph.ParseResult(rawResult)
		if !ok {
			return nil, fmt.Errorf("result row has unknown result %q", rawResult)
		}
		out[id] = r
	}
	return out, rows.Err()
}

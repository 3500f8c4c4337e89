// Package resultstore keeps a SQLite history of regression runs.
package resultstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/orchestrator"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// Run is one recorded regression run
type Run struct {
	ID         string
	CrateName  string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    domain.Summary
}

// Result is one recorded per-package verdict
type Result struct {
	Position     int
	Name         string
	Version      string
	Verdict      domain.Verdict
	Detail       string
	BaseDuration time.Duration
	NextDuration time.Duration
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a finished run and all of its results
func (s *Store) SaveRun(report *orchestrator.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sum := report.Summary
	_, err = tx.Exec(`
		INSERT INTO runs (id, crate_name, started_at, finished_at, total, pass, regressed, broken, errored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.CrateName,
		report.StartedAt,
		report.FinishedAt,
		sum.Total, sum.Pass, sum.Regressed, sum.Broken, sum.Errored,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results (run_id, position, name, version, verdict, detail, base_duration_ms, next_duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range report.Results {
		if _, err := stmt.Exec(
			report.ID,
			i+1,
			r.RevDep.Name,
			r.RevDep.Version,
			string(r.Verdict),
			r.Detail(),
			durationMillis(r.Base),
			durationMillis(r.Next),
		); err != nil {
			return fmt.Errorf("inserting result %s: %w", r.RevDep.Name, err)
		}
	}

	return tx.Commit()
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	CrateName string
	Limit     int
}

// ListRuns returns recorded runs, newest first
func (s *Store) ListRuns(opts ListOptions) ([]*Run, error) {
	query := `SELECT id, crate_name, started_at, finished_at, total, pass, regressed, broken, errored FROM runs WHERE 1=1`
	var args []interface{}

	if opts.CrateName != "" {
		query += " AND crate_name = ?"
		args = append(args, opts.CrateName)
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, crate_name, started_at, finished_at, total, pass, regressed, broken, errored
		FROM runs WHERE id = ?
	`, id)

	return scanRun(row)
}

// GetRunResults returns the results of a run in discovery order
func (s *Store) GetRunResults(runID string) ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT position, name, version, verdict, detail, base_duration_ms, next_duration_ms
		FROM results WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var r Result
		var verdict string
		var detail sql.NullString
		var baseMs, nextMs sql.NullInt64
		if err := rows.Scan(&r.Position, &r.Name, &r.Version, &verdict, &detail, &baseMs, &nextMs); err != nil {
			return nil, err
		}
		r.Verdict = domain.Verdict(verdict)
		r.Detail = detail.String
		r.BaseDuration = time.Duration(baseMs.Int64) * time.Millisecond
		r.NextDuration = time.Duration(nextMs.Int64) * time.Millisecond
		results = append(results, &r)
	}

	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	sum := &run.Summary
	err := row.Scan(&run.ID, &run.CrateName, &run.StartedAt, &run.FinishedAt,
		&sum.Total, &sum.Pass, &sum.Regressed, &sum.Broken, &sum.Errored)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func durationMillis(o *domain.BuildOutcome) sql.NullInt64 {
	if o == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: o.Duration.Milliseconds(), Valid: true}
}

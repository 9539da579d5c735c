// Package runlog persists fill run summaries in SQLite so parameter
// choices and convergence behaviour can be compared across invocations.
//
// Each invocation is one row in fill_runs; the per-grid convergence
// outcomes land in fill_run_grids keyed by (run_id, grid_index). The
// schema is managed with embedded migrations applied on Open.
package runlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearsky-data/gridfill"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the run log database at path and
// applies any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Most of the pragmas below are per-connection, so keep the pool at a
	// single connection rather than re-applying them on every checkout.
	db.SetMaxOpenConns(1)

	// WAL keeps readers from blocking the writer; busy_timeout covers the
	// window where a checkpoint still holds the write lock.
	_, err = db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
		PRAGMA foreign_keys=ON;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run summarises one fill invocation over a stack of grids.
type Run struct {
	RunID            string
	Source           string
	Variable         string
	NLat             int
	NLon             int
	GridCount        int
	ParamsJSON       string
	ConvergedCount   int
	TotalIterations  int
	MaxResidual      float64
	ElapsedMillis    int64
	CreatedUnixNanos int64
}

// Summarise fills the aggregate columns of the run from per-grid solver
// results, judging convergence against the given tolerance.
func (run *Run) Summarise(results []gridfill.Result, tolerance float64) {
	run.GridCount = len(results)
	run.ConvergedCount = 0
	run.TotalIterations = 0
	run.MaxResidual = 0
	for _, res := range results {
		if res.Converged(tolerance) {
			run.ConvergedCount++
		}
		run.TotalIterations += res.Iterations
		if res.MaxResidual > run.MaxResidual {
			run.MaxResidual = res.MaxResidual
		}
	}
}

// GridRecord is the convergence outcome for a single grid within a run.
type GridRecord struct {
	RunID       string
	GridIndex   int
	Iterations  int
	MaxResidual float64
	Converged   bool
}

// RecordsFromResults converts solver results into grid records for runID,
// judging convergence against the given tolerance.
func RecordsFromResults(runID string, results []gridfill.Result, tolerance float64) []GridRecord {
	records := make([]GridRecord, len(results))
	for i, res := range results {
		records[i] = GridRecord{
			RunID:       runID,
			GridIndex:   i,
			Iterations:  res.Iterations,
			MaxResidual: res.MaxResidual,
			Converged:   res.Converged(tolerance),
		}
	}
	return records
}

// InsertRun stores a run summary. A missing RunID gets a fresh UUID and a
// zero CreatedUnixNanos is stamped with the current time; both are written
// back to the run.
func (s *Store) InsertRun(run *Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedUnixNanos == 0 {
		run.CreatedUnixNanos = time.Now().UnixNano()
	}

	params := sql.NullString{String: run.ParamsJSON, Valid: run.ParamsJSON != ""}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO fill_runs (
				run_id, source, variable, nlat, nlon, grid_count, params_json,
				converged_count, total_iterations, max_residual, elapsed_ms,
				created_unix_nanos
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Source, run.Variable, run.NLat, run.NLon,
			run.GridCount, params, run.ConvergedCount, run.TotalIterations,
			run.MaxResidual, run.ElapsedMillis, run.CreatedUnixNanos,
		)
		return err
	})
}

// InsertGridRecords stores per-grid outcomes in a single transaction. The
// referenced run must already exist.
func (s *Store) InsertGridRecords(records []GridRecord) error {
	if len(records) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		stmt, err := tx.Prepare(`
			INSERT INTO fill_run_grids (
				run_id, grid_index, iterations, max_residual, converged
			) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, rec := range records {
			_, err := stmt.Exec(rec.RunID, rec.GridIndex, rec.Iterations, rec.MaxResidual, rec.Converged)
			if err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, source, variable, nlat, nlon, grid_count, params_json,
		       converged_count, total_iterations, max_residual, elapsed_ms,
		       created_unix_nanos
		FROM fill_runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first. A non-positive limit returns all runs.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT run_id, source, variable, nlat, nlon, grid_count, params_json,
		       converged_count, total_iterations, max_residual, elapsed_ms,
		       created_unix_nanos
		FROM fill_runs ORDER BY created_unix_nanos DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
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

// GridRecords returns the per-grid outcomes for a run ordered by grid index.
func (s *Store) GridRecords(runID string) ([]GridRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, grid_index, iterations, max_residual, converged
		FROM fill_run_grids WHERE run_id = ? ORDER BY grid_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []GridRecord
	for rows.Next() {
		var rec GridRecord
		err := rows.Scan(&rec.RunID, &rec.GridIndex, &rec.Iterations, &rec.MaxResidual, &rec.Converged)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var params sql.NullString
	err := row.Scan(
		&run.RunID, &run.Source, &run.Variable, &run.NLat, &run.NLon,
		&run.GridCount, &params, &run.ConvergedCount, &run.TotalIterations,
		&run.MaxResidual, &run.ElapsedMillis, &run.CreatedUnixNanos,
	)
	if err != nil {
		return nil, err
	}
	if params.Valid {
		run.ParamsJSON = params.String
	}
	return &run, nil
}

// runParams is the JSON document stored in the params_json column.
type runParams struct {
	Relax         float64 `json:"relax"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
	Cyclic        bool    `json:"cyclic"`
	InitZonal     bool    `json:"init_zonal"`
	Workers       int     `json:"workers,omitempty"`
}

// EncodeParams renders solver parameters as the JSON stored in params_json.
// Runtime-only fields such as the trace hook are not persisted.
func EncodeParams(p gridfill.Params) string {
	b, err := json.Marshal(runParams{
		Relax:         p.Relax,
		Tolerance:     p.Tolerance,
		MaxIterations: p.MaxIterations,
		Cyclic:        p.Cyclic,
		InitZonal:     p.InitZonal,
		Workers:       p.Workers,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeParams parses a params_json document back into solver parameters.
func DecodeParams(doc string) (gridfill.Params, error) {
	var rp runParams
	if err := json.Unmarshal([]byte(doc), &rp); err != nil {
		return gridfill.Params{}, fmt.Errorf("failed to decode params: %w", err)
	}
	return gridfill.Params{
		Relax:         rp.Relax,
		Tolerance:     rp.Tolerance,
		MaxIterations: rp.MaxIterations,
		Cyclic:        rp.Cyclic,
		InitZonal:     rp.InitZonal,
		Workers:       rp.Workers,
	}, nil
}

// retryOnBusy retries fn when SQLite reports the database as locked, which
// concurrent writers can still produce despite WAL and busy_timeout.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i) * 10 * time.Millisecond)
		}
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

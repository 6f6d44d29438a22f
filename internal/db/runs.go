package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/ifum-apermap/internal/apermap/pipeline"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("db: trace run not found")

// FiberRecord is one traced fiber of a run.
type FiberRecord struct {
	Label       int
	Synthesized bool
	// ReferenceRow is the fiber's row in the reference profile.
	ReferenceRow float64
	Midpoint     int
	Pixels       int
	// Coeffs are the power-basis trace coefficients, lowest order first.
	Coeffs []float64
}

// TraceRun is the stored summary of one pipeline run.
type TraceRun struct {
	RunID            string
	IFU              string
	Side             string
	Binning          int
	FramePath        string
	FrameRows        int
	FrameCols        int
	Expected         int
	Found            int
	Missing          []int
	Vanished         []int
	ReferenceProfile int
	ReferenceColumn  float64
	MaxPixels        int
	StartedAt        time.Time
	Duration         time.Duration
	Version          string
	// Config is the pipeline configuration as JSON.
	Config string

	Fibers []FiberRecord
}

// CountMismatch reports whether the run resolved a different number of
// fibers than the IFU expects.
func (r *TraceRun) CountMismatch() bool { return r.Found != r.Expected }

// NewTraceRun summarises a pipeline result for storage.
func NewTraceRun(res *pipeline.Result, cfg pipeline.Config, framePath string, started time.Time, elapsed time.Duration) (TraceRun, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return TraceRun{}, fmt.Errorf("encode run config: %w", err)
	}
	run := TraceRun{
		RunID:            res.RunID,
		IFU:              res.IFU.Label,
		Side:             string(res.Side),
		Binning:          res.Binning,
		FramePath:        framePath,
		Expected:         res.Expected,
		Found:            len(res.Fibers),
		Missing:          res.Missing(),
		Vanished:         res.Vanished,
		ReferenceProfile: res.ReferenceProfile,
		ReferenceColumn:  res.ReferenceColumn,
		MaxPixels:        res.MaxPixels,
		StartedAt:        started,
		Duration:         elapsed,
		Config:           string(cfgJSON),
	}
	if res.Map != nil {
		run.FrameRows, run.FrameCols = res.Map.Rows, res.Map.Cols
	}
	for i, f := range res.Fibers {
		rec := FiberRecord{
			Label:        f.Label,
			Synthesized:  f.Synthesized,
			ReferenceRow: f.Reference,
			Coeffs:       f.Trace.Standard(),
		}
		if i < len(res.Midpoints) {
			rec.Midpoint = res.Midpoints[i]
		}
		if i < len(res.Pixels) {
			rec.Pixels = res.Pixels[i]
		}
		run.Fibers = append(run.Fibers, rec)
	}
	return run, nil
}

// RecordRun stores a run and its fibers in one transaction. A zero
// StartedAt is stamped with the database clock.
func (db *DB) RecordRun(run TraceRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = db.clock.Now()
	}
	missing, err := encodeInts(run.Missing)
	if err != nil {
		return err
	}
	vanished, err := encodeInts(run.Vanished)
	if err != nil {
		return err
	}
	config := run.Config
	if config == "" {
		config = "{}"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO trace_runs (
			run_id, ifu, side, binning, frame_path, frame_rows, frame_cols,
			expected, found, missing_json, vanished_json, reference_profile,
			reference_column, max_pixels, started_unix_nano, duration_ms,
			version, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.IFU, run.Side, run.Binning, run.FramePath, run.FrameRows, run.FrameCols,
		run.Expected, run.Found, missing, vanished, run.ReferenceProfile,
		run.ReferenceColumn, run.MaxPixels, run.StartedAt.UnixNano(),
		float64(run.Duration)/float64(time.Millisecond), run.Version, config,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO trace_fibers (run_id, label, synthesized, reference_row, midpoint, pixels, coeffs_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fiber insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range run.Fibers {
		coeffs, err := json.Marshal(f.Coeffs)
		if err != nil {
			return fmt.Errorf("encode fiber %d coefficients: %w", f.Label, err)
		}
		if _, err := stmt.Exec(run.RunID, f.Label, f.Synthesized, f.ReferenceRow, f.Midpoint, f.Pixels, string(coeffs)); err != nil {
			return fmt.Errorf("insert fiber %d: %w", f.Label, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, ifu, side, binning, frame_path, frame_rows, frame_cols,
	expected, found, missing_json, vanished_json, reference_profile,
	reference_column, max_pixels, started_unix_nano, duration_ms, version, config_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (TraceRun, error) {
	var (
		run               TraceRun
		missing, vanished string
		startedNano       int64
		durationMs        float64
	)
	err := row.Scan(&run.RunID, &run.IFU, &run.Side, &run.Binning, &run.FramePath, &run.FrameRows, &run.FrameCols,
		&run.Expected, &run.Found, &missing, &vanished, &run.ReferenceProfile,
		&run.ReferenceColumn, &run.MaxPixels, &startedNano, &durationMs, &run.Version, &run.Config)
	if err != nil {
		return TraceRun{}, err
	}
	if err := json.Unmarshal([]byte(missing), &run.Missing); err != nil {
		return TraceRun{}, fmt.Errorf("decode missing labels of %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(vanished), &run.Vanished); err != nil {
		return TraceRun{}, fmt.Errorf("decode vanished labels of %s: %w", run.RunID, err)
	}
	run.StartedAt = time.Unix(0, startedNano).UTC()
	run.Duration = time.Duration(durationMs * float64(time.Millisecond))
	return run, nil
}

// GetRun loads a run with its fibers in label order.
func (db *DB) GetRun(runID string) (*TraceRun, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM trace_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT label, synthesized, reference_row, midpoint, pixels, coeffs_json
		FROM trace_fibers WHERE run_id = ? ORDER BY label`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			f      FiberRecord
			coeffs string
		)
		if err := rows.Scan(&f.Label, &f.Synthesized, &f.ReferenceRow, &f.Midpoint, &f.Pixels, &coeffs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(coeffs), &f.Coeffs); err != nil {
			return nil, fmt.Errorf("decode fiber %d coefficients: %w", f.Label, err)
		}
		run.Fibers = append(run.Fibers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run summaries without fibers, newest first. Empty ifu
// or side match any value; limit <= 0 means no limit.
func (db *DB) ListRuns(ifu, side string, limit int) ([]TraceRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM trace_runs
		WHERE (? = '' OR ifu = ?) AND (? = '' OR side = ?)
		ORDER BY started_unix_nano DESC, run_id
		LIMIT ?`, ifu, ifu, side, side, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TraceRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run for an IFU and side.
func (db *DB) LatestRun(ifu, side string) (*TraceRun, error) {
	runs, err := db.ListRuns(ifu, side, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs for %s/%s", ErrRunNotFound, ifu, side)
	}
	return db.GetRun(runs[0].RunID)
}

// PruneRuns deletes runs that started more than maxAge before now and
// returns how many were removed. Their fibers go with them.
func (db *DB) PruneRuns(maxAge time.Duration) (int64, error) {
	cutoff := db.clock.Now().Add(-maxAge).UnixNano()
	res, err := db.Exec(`DELETE FROM trace_runs WHERE started_unix_nano < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func encodeInts(v []int) (string, error) {
	if v == nil {
		v = []int{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(b), nil
}

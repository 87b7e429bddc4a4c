package sloc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// InsertRunRecord creates the run_history row for a run that is starting.
func InsertRunRecord(db *sql.DB, startedAt time.Time, triggeredBy string) (int64, error) {
	now := startedAt.Unix()
	res, err := db.Exec(`
		INSERT INTO run_history
			(started_at, status, triggered_by, created_at)
		VALUES (?, 'running', ?, ?)`,
		now, triggeredBy, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// finalizeRunRecord stamps the run's terminal status and totals. report may
// be nil (failed or cancelled runs); counters then come from progress so a
// partial run still shows how far it got.
func finalizeRunRecord(db *sql.DB, runID int64, status string, finishedAt time.Time, elapsed time.Duration, report *Report, p *Progress) error {
	var total, files, discovered, errCount int64
	if report != nil {
		total = report.Total
		files = report.Files
		discovered = report.Discovered
		errCount = report.Errors
	} else if p != nil {
		total = p.Lines.Load()
		files = p.FilesCounted.Load()
		discovered = p.FilesDiscovered.Load()
		errCount = p.Errors.Load()
	}

	_, err := db.Exec(`
		UPDATE run_history
		SET status           = ?,
		    finished_at      = ?,
		    duration_ms      = ?,
		    total_sloc       = ?,
		    files_counted    = ?,
		    files_discovered = ?,
		    errors           = ?
		WHERE id = ?`,
		status, finishedAt.Unix(), elapsed.Milliseconds(),
		total, files, discovered, errCount, runID)
	return err
}

// insertRunErrors persists the per-worker diagnostic logs in a single
// transaction, preserving each worker's internal order.
func insertRunErrors(db *sql.DB, runID int64, diagnostics [][]string) error {
	empty := true
	for _, log := range diagnostics {
		if len(log) > 0 {
			empty = false
			break
		}
	}
	if empty {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_errors (run_id, worker, message, occurred_at)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_error: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for worker, log := range diagnostics {
		for _, msg := range log {
			if _, err := stmt.Exec(runID, worker, msg, now); err != nil {
				return fmt.Errorf("insert run error: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ExecuteRecorded runs the pipeline for an already-created run_history row
// and persists the outcome. The returned report is nil when the run failed
// or was cancelled.
func ExecuteRecorded(ctx context.Context, db *sql.DB, runID int64, startedAt time.Time, roots []string, cfg Config, progress *Progress) (*Report, error) {
	report, runErr := NewRunner(roots, cfg).Run(ctx, progress)

	status := "completed"
	if ctx.Err() != nil {
		status = "cancelled"
		if runErr == nil {
			runErr = ctx.Err()
		}
	} else if runErr != nil {
		status = "failed"
	}

	finishedAt := time.Now()
	if err := finalizeRunRecord(db, runID, status, finishedAt, finishedAt.Sub(startedAt), report, progress); err != nil {
		slog.Error("finalize run record", "id", runID, "error", err)
	}
	if report != nil {
		if err := insertRunErrors(db, runID, report.Diagnostics); err != nil {
			slog.Error("insert run errors", "id", runID, "error", err)
		}
	}

	slog.Info("run finished", "id", runID, "status", status,
		"total_sloc", progress.Lines.Load(),
		"files_counted", progress.FilesCounted.Load())

	return report, runErr
}

// MarkStaleRunsFailed marks any run_history rows still in 'running' state
// as failed. Called once at serve-mode startup in case a previous process
// died mid-run.
func MarkStaleRunsFailed(db *sql.DB) error {
	res, err := db.Exec(`
		UPDATE run_history
		SET status = 'failed', finished_at = ?
		WHERE status = 'running'`,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale runs as failed", "count", n)
	}
	return nil
}

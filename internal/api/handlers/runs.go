package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sloctool/sloctool/internal/sloc"
)

// RunsHandler handles run-related API endpoints.
type RunsHandler struct {
	DB      *sql.DB
	Manager *sloc.Manager
}

// Create handles POST /api/runs — triggers a manual counting run.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	active, err := h.Manager.Start(context.Background(), "manual")
	if err != nil {
		if errors.Is(err, sloc.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "RUN_ALREADY_RUNNING", "A run is already in progress")
			return
		}
		slog.Error("runs: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":           active.ID,
		"status":       "running",
		"started_at":   active.StartedAt.UTC().Format(time.RFC3339),
		"triggered_by": active.TriggeredBy,
	})
}

// Cancel handles DELETE /api/runs/current.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel()
	if err != nil {
		if errors.Is(err, sloc.ErrNoActiveRun) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_RUN", "No run is currently in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          snap.ID,
		"status":      "cancelled",
		"started_at":  snap.StartedAt.UTC().Format(time.RFC3339),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	})
}

type runItem struct {
	ID              int64   `json:"id"`
	StartedAt       string  `json:"started_at"`
	FinishedAt      *string `json:"finished_at"`
	Status          string  `json:"status"`
	TriggeredBy     string  `json:"triggered_by"`
	TotalSloc       int64   `json:"total_sloc"`
	FilesDiscovered int64   `json:"files_discovered"`
	FilesCounted    int64   `json:"files_counted"`
	Errors          int64   `json:"errors"`
	DurationMs      *int64  `json:"duration_ms"`
}

// List handles GET /api/runs — returns run history newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	rows, err := h.DB.QueryContext(r.Context(), `
		SELECT id, started_at, finished_at, status, triggered_by,
		       total_sloc, files_discovered, files_counted, errors, duration_ms
		FROM run_history
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		slog.Error("runs list: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	defer rows.Close()

	var items []runItem
	for rows.Next() {
		it, err := scanRunRow(rows)
		if err != nil {
			slog.Error("runs list: scan row", "error", err)
			continue
		}
		items = append(items, it)
	}
	if items == nil {
		items = []runItem{}
	}

	var total int
	h.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM run_history`).Scan(&total)

	writeJSON(w, http.StatusOK, ListResponse[runItem]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/runs/:id — a single run plus its error list.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid run ID")
		return
	}

	type errItem struct {
		Worker  int64  `json:"worker"`
		Message string `json:"message"`
	}
	type runDetail struct {
		runItem
		ErrorList []errItem `json:"error_list"`
	}

	row := h.DB.QueryRowContext(r.Context(), `
		SELECT id, started_at, finished_at, status, triggered_by,
		       total_sloc, files_discovered, files_counted, errors, duration_ms
		FROM run_history WHERE id = ?`, id)

	var d runDetail
	d.runItem, err = scanRunRow(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	errRows, _ := h.DB.QueryContext(r.Context(), `
		SELECT worker, message
		FROM run_errors WHERE run_id = ?
		ORDER BY worker, id`, id)
	if errRows != nil {
		defer errRows.Close()
		for errRows.Next() {
			var e errItem
			if errRows.Scan(&e.Worker, &e.Message) == nil {
				d.ErrorList = append(d.ErrorList, e)
			}
		}
	}
	if d.ErrorList == nil {
		d.ErrorList = []errItem{}
	}

	writeJSON(w, http.StatusOK, d)
}

// scanRunRow maps one run_history row onto a runItem. Works for both
// *sql.Row and *sql.Rows.
func scanRunRow(row interface{ Scan(...interface{}) error }) (runItem, error) {
	var it runItem
	var startedAt int64
	var finishedAt, durMs sql.NullInt64
	if err := row.Scan(
		&it.ID, &startedAt, &finishedAt, &it.Status, &it.TriggeredBy,
		&it.TotalSloc, &it.FilesDiscovered, &it.FilesCounted, &it.Errors, &durMs,
	); err != nil {
		return runItem{}, err
	}
	it.StartedAt = time.Unix(startedAt, 0).UTC().Format(time.RFC3339)
	if finishedAt.Valid {
		s := time.Unix(finishedAt.Int64, 0).UTC().Format(time.RFC3339)
		it.FinishedAt = &s
	}
	if durMs.Valid {
		it.DurationMs = &durMs.Int64
	}
	return it, nil
}

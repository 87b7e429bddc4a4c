package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/sloctool/sloctool/internal/scheduler"
	"github.com/sloctool/sloctool/internal/sloc"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	DB      *sql.DB
	Manager *sloc.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version          string            `json:"version"`
	ActiveRun        *activeRunInfo    `json:"active_run"`
	Schedule         scheduleInfo      `json:"schedule"`
	LastCompletedRun *completedRunInfo `json:"last_completed_run"`
}

type activeRunInfo struct {
	ID          int64           `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	TriggeredBy string          `json:"triggered_by"`
	Progress    runProgressInfo `json:"progress"`
}

type runProgressInfo struct {
	FilesDiscovered int64 `json:"files_discovered"`
	FilesCounted    int64 `json:"files_counted"`
	Lines           int64 `json:"lines"`
	BytesRead       int64 `json:"bytes_read"`
	Errors          int64 `json:"errors"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

type completedRunInfo struct {
	ID           int64     `json:"id"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalSloc    int64     `json:"total_sloc"`
	FilesCounted int64     `json:"files_counted"`
	Errors       int64     `json:"errors"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:   h.Version,
		ActiveRun: h.activeRun(),
		Schedule: scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			NextRunAt: h.Sched.NextRunAt(),
		},
		LastCompletedRun: h.lastCompletedRun(r),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) activeRun() *activeRunInfo {
	active := h.Manager.ActiveRun()
	if active == nil {
		return nil
	}
	return &activeRunInfo{
		ID:          active.ID,
		StartedAt:   active.StartedAt,
		TriggeredBy: active.TriggeredBy,
		Progress: runProgressInfo{
			FilesDiscovered: active.Progress.FilesDiscovered.Load(),
			FilesCounted:    active.Progress.FilesCounted.Load(),
			Lines:           active.Progress.Lines.Load(),
			BytesRead:       active.Progress.BytesRead.Load(),
			Errors:          active.Progress.Errors.Load(),
		},
	}
}

func (h *StatusHandler) lastCompletedRun(r *http.Request) *completedRunInfo {
	var info completedRunInfo
	var finishedAt int64
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT id, finished_at, total_sloc, files_counted, errors
		FROM run_history
		WHERE status = 'completed'
		ORDER BY finished_at DESC
		LIMIT 1`).Scan(&info.ID, &finishedAt, &info.TotalSloc, &info.FilesCounted, &info.Errors)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		slog.Error("status: last completed run", "error", err)
		return nil
	}
	info.FinishedAt = time.Unix(finishedAt, 0).UTC()
	return &info
}

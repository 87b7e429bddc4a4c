package sloc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a run is started while one is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// ErrNoActiveRun is returned when cancel is called with no run in progress.
var ErrNoActiveRun = errors.New("no run is currently in progress")

// ActiveRun holds live information about the run in progress.
type ActiveRun struct {
	ID          int64
	StartedAt   time.Time
	TriggeredBy string
	Progress    *Progress
}

// Manager enforces a single-active-run invariant for serve mode and
// exposes start/cancel. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	db    *sql.DB
	roots []string
	cfg   Config

	active   *ActiveRun
	cancelFn context.CancelFunc
}

// NewManager creates a Manager.
func NewManager(db *sql.DB, roots []string, cfg Config) *Manager {
	return &Manager{db: db, roots: roots, cfg: cfg}
}

// Start launches an asynchronous counting run. Returns an ActiveRun
// snapshot, or ErrAlreadyRunning if one is in progress. The run_history
// row is created before the goroutine starts so the ID is available in the
// HTTP response immediately.
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) (*ActiveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}

	startedAt := time.Now()
	runID, err := InsertRunRecord(m.db, startedAt, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}

	progress := &Progress{}
	runCtx, cancel := context.WithCancel(parentCtx)

	active := &ActiveRun{
		ID:          runID,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
		Progress:    progress,
	}
	m.active = active
	m.cancelFn = cancel

	go func() {
		defer cancel()
		if _, err := ExecuteRecorded(runCtx, m.db, runID, startedAt, m.roots, m.cfg, progress); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("run error", "id", runID, "error", err)
		}

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.mu.Unlock()
	}()

	return active, nil
}

// Cancel stops the run in progress. Returns ErrNoActiveRun when idle.
func (m *Manager) Cancel() (*ActiveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveRun
	}

	snap := *m.active
	m.cancelFn()
	return &snap, nil
}

// ActiveRun returns a snapshot of the run in progress, or nil when idle.
func (m *Manager) ActiveRun() *ActiveRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

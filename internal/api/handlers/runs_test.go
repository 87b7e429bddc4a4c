package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sloctool/sloctool/internal/db"
	"github.com/sloctool/sloctool/internal/sloc"
)

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func seedRun(t *testing.T, database *sql.DB, status string, total int64) int64 {
	t.Helper()
	now := time.Now().Unix()
	res, err := database.Exec(`
		INSERT INTO run_history
			(started_at, finished_at, status, triggered_by, total_sloc,
			 files_discovered, files_counted, errors, duration_ms, created_at)
		VALUES (?, ?, ?, 'test', ?, 3, 3, 0, 120, ?)`,
		now, now, status, total, now)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return id
}

func newRouter(database *sql.DB, mgr *sloc.Manager) *chi.Mux {
	h := &RunsHandler{DB: database, Manager: mgr}
	r := chi.NewRouter()
	r.Post("/api/runs", h.Create)
	r.Get("/api/runs", h.List)
	r.Get("/api/runs/{id}", h.Get)
	r.Delete("/api/runs/current", h.Cancel)
	return r
}

// TestRunsListReturnsNewestFirst seeds two runs and verifies ordering and
// the pagination envelope.
func TestRunsListReturnsNewestFirst(t *testing.T) {
	database := mustOpenDB(t)
	seedRun(t, database, "completed", 10)
	// Later started_at so it must come first.
	res, err := database.Exec(`
		INSERT INTO run_history
			(started_at, finished_at, status, triggered_by, total_sloc,
			 files_discovered, files_counted, errors, duration_ms, created_at)
		VALUES (?, ?, 'completed', 'test', 20, 1, 1, 0, 50, ?)`,
		time.Now().Unix()+100, time.Now().Unix()+101, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	newestID, _ := res.LastInsertId()

	r := newRouter(database, sloc.NewManager(database, nil, sloc.Config{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp struct {
		Items []struct {
			ID        int64 `json:"id"`
			TotalSloc int64 `json:"total_sloc"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("got %d/%d runs, want 2/2", len(resp.Items), resp.Total)
	}
	if resp.Items[0].ID != newestID {
		t.Errorf("first item ID = %d, want newest %d", resp.Items[0].ID, newestID)
	}
}

// TestRunsGetIncludesErrorList verifies the detail endpoint joins in the
// run_errors rows.
func TestRunsGetIncludesErrorList(t *testing.T) {
	database := mustOpenDB(t)
	id := seedRun(t, database, "completed", 10)
	if _, err := database.Exec(`
		INSERT INTO run_errors (run_id, worker, message, occurred_at)
		VALUES (?, 1, '/src/bad.c: unterminated block comment', ?)`,
		id, time.Now().Unix()); err != nil {
		t.Fatal(err)
	}

	r := newRouter(database, sloc.NewManager(database, nil, sloc.Config{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp struct {
		ID        int64 `json:"id"`
		ErrorList []struct {
			Worker  int64  `json:"worker"`
			Message string `json:"message"`
		} `json:"error_list"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.ErrorList) != 1 || resp.ErrorList[0].Worker != 1 {
		t.Errorf("error list = %+v, want one entry for worker 1", resp.ErrorList)
	}
}

func TestRunsGetNotFound(t *testing.T) {
	database := mustOpenDB(t)
	r := newRouter(database, sloc.NewManager(database, nil, sloc.Config{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

// TestRunsCreateStartsARun triggers a run over a real tree and verifies the
// 202 response and the eventual completed history row.
func TestRunsCreateStartsARun(t *testing.T) {
	database := mustOpenDB(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.c"), []byte("int x;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	mgr := sloc.NewManager(database, []string{root}, sloc.Config{Workers: 2})

	r := newRouter(database, mgr)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", rec.Code)
	}

	deadline := time.After(5 * time.Second)
	for mgr.ActiveRun() != nil {
		select {
		case <-deadline:
			t.Fatal("run did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	var status string
	if err := database.QueryRow(`SELECT status FROM run_history ORDER BY id DESC LIMIT 1`).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestRunsCancelWithoutActiveRun(t *testing.T) {
	database := mustOpenDB(t)
	r := newRouter(database, sloc.NewManager(database, nil, sloc.Config{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/current", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

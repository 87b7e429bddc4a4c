package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sloctool/sloctool/internal/report"
	"github.com/sloctool/sloctool/internal/sloc"
)

// TestRenderSummaryAndSections verifies the summary line, the per-worker
// error section, and the per-file detail section.
func TestRenderSummaryAndSections(t *testing.T) {
	rep := &sloc.Report{
		Total:   42,
		Files:   3,
		Elapsed: 1500 * time.Millisecond,
		Diagnostics: [][]string{
			nil,
			{"/src/bad.c: unterminated block comment"},
		},
		Details: [][]string{
			{"/src/a.c: 40 sloc"},
			nil,
		},
		Errors: 1,
	}

	var b strings.Builder
	if err := report.Render(&b, rep); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := b.String()

	if !strings.Contains(out, "There are 42 lines across 3 files.") {
		t.Errorf("missing summary line in:\n%s", out)
	}
	if !strings.Contains(out, "Worker 1 errors:") || !strings.Contains(out, "unterminated block comment") {
		t.Errorf("missing error section in:\n%s", out)
	}
	if !strings.Contains(out, "Worker 0 files:") || !strings.Contains(out, "40 sloc") {
		t.Errorf("missing detail section in:\n%s", out)
	}
	if strings.Contains(out, "Worker 0 errors:") {
		t.Errorf("worker with no errors must be omitted:\n%s", out)
	}
}

// TestWriteFileTruncatesPrevious verifies the artifact is rewritten, not
// appended to.
func TestWriteFileTruncatesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line_count.out")
	if err := os.WriteFile(path, []byte(strings.Repeat("old report\n", 100)), 0644); err != nil {
		t.Fatal(err)
	}

	rep := &sloc.Report{Total: 1, Files: 1}
	if err := report.WriteFile(path, rep); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "old report") {
		t.Error("previous report content survived")
	}
	if !strings.Contains(string(data), "There are 1 lines") {
		t.Errorf("unexpected report content:\n%s", data)
	}
}

// Package report renders a run's outcome for the console and the persisted
// report artifact.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/sloctool/sloctool/internal/sloc"
)

// Render writes the human-readable report to w: grand total and elapsed
// time first, then a per-worker error section and, when per-file counts
// were requested, a per-worker detail section. Workers with nothing to say
// are omitted.
func Render(w io.Writer, rep *sloc.Report) error {
	us := rep.Elapsed.Microseconds()
	if _, err := fmt.Fprintf(w, "There are %d lines across %d files.\nExecution time: %d us - %d ms - %d s\n",
		rep.Total, rep.Files, us, us/1000, us/1000000); err != nil {
		return err
	}

	for worker, log := range rep.Diagnostics {
		if len(log) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nWorker %d errors:\n", worker)
		for _, msg := range log {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}

	for worker, detail := range rep.Details {
		if len(detail) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nWorker %d files:\n", worker)
		for _, line := range detail {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}

// WriteFile renders the report into the artifact at path, truncating any
// previous run's report.
func WriteFile(path string, rep *sloc.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %q: %w", path, err)
	}
	defer f.Close()

	if err := Render(f, rep); err != nil {
		return fmt.Errorf("write report %q: %w", path, err)
	}
	return nil
}

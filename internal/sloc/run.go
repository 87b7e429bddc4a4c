// Package sloc implements the two-phase concurrent counting pipeline: a
// parallel recursive discovery phase appending into a shared lock-free file
// list, a barrier hand-off that elects one worker to repartition the frozen
// list, and a parallel counting phase whose per-worker subtotals fold into
// an atomic grand total.
package sloc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds pipeline tuning parameters.
type Config struct {
	Workers       int
	MaxFiles      int
	MaxFileSize   int64
	PerFileCounts bool
	Extensions    []string
	ExcludePaths  []string
	BarrierWait   time.Duration
}

// DefaultConfig returns sensible defaults: one worker per CPU and the C/C++
// extension set of the original tool.
func DefaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		MaxFiles:    256 * 1024,
		MaxFileSize: 10 * 1024 * 1024,
		Extensions:  []string{".c", ".h", ".cpp", ".hpp"},
		BarrierWait: 30 * time.Second,
	}
}

// Result is one worker's contribution to a run. Created at spawn, written
// only by its worker, read by the coordinator after the final join.
type Result struct {
	Subtotal int64
	Files    int64
	Log      []string // per-file errors, in this worker's encounter order
	Detail   []string // optional per-file counts
}

func (r *Result) logError(msg string) {
	r.Log = append(r.Log, msg)
}

// Report is the run outcome handed to the reporting collaborator.
// Diagnostics and Details are per-worker: ordered within a worker, never
// merged across workers into one strict order.
type Report struct {
	Total       int64
	Files       int64
	Discovered  int64
	Elapsed     time.Duration
	Diagnostics [][]string
	Details     [][]string
	Errors      int64
}

// Runner coordinates one counting run over a set of root directories.
type Runner struct {
	roots []string
	cfg   Config
}

// NewRunner creates a Runner. Zero-value cfg fields fall back to
// DefaultConfig values.
func NewRunner(roots []string, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = def.Extensions
	}
	if cfg.BarrierWait <= 0 {
		cfg.BarrierWait = def.BarrierWait
	}
	return &Runner{roots: roots, cfg: cfg}
}

// Run executes both phases and returns the report. Per-file failures are
// recorded in the report diagnostics and never abort the run; a non-nil
// error means a fatal condition (capacity exceeded, oversized file,
// stranded barrier) and the report is nil.
//
// Each worker goroutine lives across both phases: it discovers its span of
// roots, arrives at the barrier, and — once the elected worker has
// repartitioned the now-frozen file list — counts its span of files. A
// worker that hits a fatal error mid-phase still arrives, so siblings are
// never stranded.
func (r *Runner) Run(ctx context.Context, progress *Progress) (*Report, error) {
	start := time.Now()
	if progress == nil {
		progress = &Progress{}
	}

	workers := r.cfg.Workers
	list := NewFileList(r.cfg.MaxFiles)
	barrier := NewBarrier(workers)
	rootSpans := Partition(len(r.roots), workers)

	// Written by the elected worker between Arrive and Release; the
	// generation bump orders those writes before any sibling's read.
	fileSpans := make([]Span, workers)

	exts := make(map[string]struct{}, len(r.cfg.Extensions))
	for _, e := range r.cfg.Extensions {
		exts[e] = struct{}{}
	}
	excludes := make(map[string]struct{}, len(r.cfg.ExcludePaths))
	for _, p := range r.cfg.ExcludePaths {
		excludes[p] = struct{}{}
	}

	results := make([]Result, workers)
	fatal := make([]error, workers)
	var total atomic.Int64

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			fatal[id] = r.worker(ctx, id, workers, rootSpans, fileSpans,
				exts, excludes, list, barrier, progress, &results[id], &total)
		}(id)
	}
	wg.Wait()

	for id, err := range fatal {
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", id, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Total:      total.Load(),
		Discovered: int64(list.Len()),
		Elapsed:    time.Since(start),
		Errors:     progress.Errors.Load(),
	}
	for id := range results {
		report.Files += results[id].Files
		report.Diagnostics = append(report.Diagnostics, results[id].Log)
		report.Details = append(report.Details, results[id].Detail)
	}

	slog.Debug("run complete",
		"total", report.Total,
		"files", report.Files,
		"discovered", report.Discovered,
		"errors", report.Errors,
		"elapsed", report.Elapsed)

	return report, nil
}

// worker is one pool member's whole lifetime: discovery, barrier, counting.
func (r *Runner) worker(
	ctx context.Context,
	id, workers int,
	rootSpans, fileSpans []Span,
	exts, excludes map[string]struct{},
	list *FileList,
	barrier *Barrier,
	progress *Progress,
	res *Result,
	total *atomic.Int64,
) error {
	gen := barrier.Generation()

	discoverErr := discoverRoots(ctx, r.roots, rootSpans[id], exts, excludes, list, progress, res)

	// Arrive unconditionally — a worker that failed discovery (or had no
	// roots at all) still signals, and may still be the elected one.
	if barrier.Arrive() {
		copy(fileSpans, Partition(list.Len(), workers))
		barrier.Release()
	} else if err := barrier.Await(gen, r.cfg.BarrierWait); err != nil {
		if discoverErr != nil {
			return discoverErr
		}
		return err
	}

	if discoverErr != nil {
		return discoverErr
	}
	if ctx.Err() != nil {
		return nil
	}

	c := newCounter(r.cfg.MaxFileSize, r.cfg.PerFileCounts)
	return c.countFiles(ctx, list, fileSpans[id], progress, res, total)
}

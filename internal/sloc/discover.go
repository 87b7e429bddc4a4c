package sloc

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// discoverRoots walks the worker's assigned span of root directories
// recursively and appends every file with a matching extension to list.
// Unreadable directories and entries are logged to the worker's result and
// skipped; the only error returned is the fatal capacity overflow from
// Reserve. No cross-worker ordering is guaranteed — the final list order is
// whatever interleaving of reservations occurred, which is fine because
// counting is commutative.
func discoverRoots(
	ctx context.Context,
	roots []string,
	span Span,
	exts map[string]struct{},
	excludes map[string]struct{},
	list *FileList,
	progress *Progress,
	res *Result,
) error {
	for i := 0; i < span.Size; i++ {
		root := roots[span.Offset+i]
		if err := walkDir(ctx, root, exts, excludes, list, progress, res); err != nil {
			return err
		}
	}
	return nil
}

func walkDir(
	ctx context.Context,
	dir string,
	exts map[string]struct{},
	excludes map[string]struct{},
	list *FileList,
	progress *Progress,
	res *Result,
) error {
	if ctx.Err() != nil {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		res.logError(fmt.Sprintf("%s: %v", dir, err))
		progress.Errors.Add(1)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if _, excluded := excludes[path]; excluded {
			continue
		}

		if entry.IsDir() {
			if err := walkDir(ctx, path, exts, excludes, list, progress, res); err != nil {
				return err
			}
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
			continue
		}

		index, err := list.Reserve(1)
		if err != nil {
			return err
		}
		list.Set(index, path)
		progress.FilesDiscovered.Add(1)
	}
	return nil
}

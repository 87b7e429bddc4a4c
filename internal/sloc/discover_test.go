package sloc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// TestDiscoverFindsMatchingFiles builds a tree with nested directories and
// verifies only files with matching extensions are appended.
func TestDiscoverFindsMatchingFiles(t *testing.T) {
	root := t.TempDir()
	want := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		sub := filepath.Join(root, fmt.Sprintf("sub%d", i))
		if err := os.MkdirAll(filepath.Join(sub, "nested"), 0755); err != nil {
			t.Fatal(err)
		}
		for j, ext := range []string{".c", ".cpp", ".h"} {
			p := filepath.Join(sub, "nested", fmt.Sprintf("file%d%s", j, ext))
			if err := os.WriteFile(p, []byte("int x;\n"), 0644); err != nil {
				t.Fatal(err)
			}
			want[p] = struct{}{}
		}
		// Non-matching neighbours must be ignored.
		if err := os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("hi"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list := NewFileList(100)
	var res Result
	progress := &Progress{}
	err := discoverRoots(context.Background(), []string{root}, Span{Offset: 0, Size: 1},
		extSet(".c", ".cpp", ".h", ".hpp"), nil, list, progress, &res)
	if err != nil {
		t.Fatalf("discoverRoots: %v", err)
	}

	got := map[string]struct{}{}
	for i := 0; i < list.Len(); i++ {
		got[list.At(i)] = struct{}{}
	}
	if len(got) != len(want) {
		t.Errorf("discovered %d files, want %d", len(got), len(want))
	}
	for p := range want {
		if _, ok := got[p]; !ok {
			t.Errorf("missing expected file %q", p)
		}
	}
	if progress.FilesDiscovered.Load() != int64(len(want)) {
		t.Errorf("FilesDiscovered = %d, want %d", progress.FilesDiscovered.Load(), len(want))
	}
	if len(res.Log) != 0 {
		t.Errorf("unexpected diagnostics: %v", res.Log)
	}
}

// TestDiscoverCaseInsensitiveExtensions verifies .C and .CPP files match on
// any host filesystem.
func TestDiscoverCaseInsensitiveExtensions(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"upper.C", "shouty.CPP"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("int x;\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list := NewFileList(10)
	var res Result
	err := discoverRoots(context.Background(), []string{root}, Span{Offset: 0, Size: 1},
		extSet(".c", ".cpp"), nil, list, &Progress{}, &res)
	if err != nil {
		t.Fatalf("discoverRoots: %v", err)
	}
	if list.Len() != 2 {
		t.Errorf("discovered %d files, want 2", list.Len())
	}
}

// TestDiscoverExcludesPaths verifies an excluded file is skipped while a
// sibling is found, and that excluding a directory prunes its subtree.
func TestDiscoverExcludesPaths(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep.c")
	skip := filepath.Join(root, "skip.c")
	skipDir := filepath.Join(root, "vendor")
	if err := os.Mkdir(skipDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{keep, skip, filepath.Join(skipDir, "third.c")} {
		if err := os.WriteFile(p, []byte("int x;\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	excludes := map[string]struct{}{skip: {}, skipDir: {}}
	list := NewFileList(10)
	var res Result
	err := discoverRoots(context.Background(), []string{root}, Span{Offset: 0, Size: 1},
		extSet(".c"), excludes, list, &Progress{}, &res)
	if err != nil {
		t.Fatalf("discoverRoots: %v", err)
	}

	if list.Len() != 1 || list.At(0) != keep {
		paths := make([]string, list.Len())
		for i := range paths {
			paths[i] = list.At(i)
		}
		t.Errorf("discovered %v, want only %q", paths, keep)
	}
}

// TestDiscoverUnreadableRootIsLogged verifies a missing root is recorded in
// the worker diagnostic and does not abort discovery of later roots.
func TestDiscoverUnreadableRootIsLogged(t *testing.T) {
	good := t.TempDir()
	if err := os.WriteFile(filepath.Join(good, "a.c"), []byte("int x;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	roots := []string{filepath.Join(good, "does-not-exist"), good}

	list := NewFileList(10)
	var res Result
	progress := &Progress{}
	err := discoverRoots(context.Background(), roots, Span{Offset: 0, Size: 2},
		extSet(".c"), nil, list, progress, &res)
	if err != nil {
		t.Fatalf("discoverRoots: %v", err)
	}

	if list.Len() != 1 {
		t.Errorf("discovered %d files, want 1", list.Len())
	}
	if len(res.Log) != 1 {
		t.Errorf("diagnostics %v, want exactly one entry for the missing root", res.Log)
	}
	if progress.Errors.Load() != 1 {
		t.Errorf("Errors counter = %d, want 1", progress.Errors.Load())
	}
}

// TestDiscoverCapacityOverflowIsFatal verifies discovery surfaces
// ErrCapacityExceeded instead of dropping paths.
func TestDiscoverCapacityOverflowIsFatal(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(root, fmt.Sprintf("f%d.c", i)), []byte("int x;\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	list := NewFileList(2)
	var res Result
	err := discoverRoots(context.Background(), []string{root}, Span{Offset: 0, Size: 1},
		extSet(".c"), nil, list, &Progress{}, &res)
	if err == nil {
		t.Fatal("expected capacity error, got nil")
	}
}

package sloc

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrCapacityExceeded is returned by Reserve when the discovered-file count
// would exceed the list's fixed capacity. It is a fatal configuration error:
// silently dropping paths would corrupt the count.
var ErrCapacityExceeded = errors.New("file list capacity exceeded")

// FileList is an append-only collection of discovered file paths shared by
// all discovery workers. Appends go through range reservation: a worker
// atomically claims a disjoint index range up front and then fills it
// without further synchronisation, so there is no per-append lock and no
// write-write race by construction.
//
// The list only grows during the discovery phase. From the start of the
// counting phase it is frozen; that hand-off is enforced by the Barrier,
// not by this type.
type FileList struct {
	paths  []string
	cursor atomic.Int64
}

// NewFileList creates a list with a fixed capacity.
func NewFileList(capacity int) *FileList {
	return &FileList{paths: make([]string, capacity)}
}

// Reserve atomically claims n consecutive slots and returns the index of the
// first one. Returns ErrCapacityExceeded when the claim would overflow the
// backing array; the cursor is rolled back so siblings can still report an
// accurate size.
func (l *FileList) Reserve(n int) (int, error) {
	next := l.cursor.Add(int64(n))
	if next > int64(len(l.paths)) {
		l.cursor.Add(int64(-n))
		return 0, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, len(l.paths))
	}
	return int(next) - n, nil
}

// Set stores a path at a previously reserved index. Only the worker that
// reserved the index may write it.
func (l *FileList) Set(index int, path string) {
	l.paths[index] = path
}

// At returns the path at index. Valid only for indices below Len() after
// the reserving worker has written them.
func (l *FileList) At(index int) string {
	return l.paths[index]
}

// Len reads the current cursor. The value is only a final size once all
// discovery workers have passed the barrier.
func (l *FileList) Len() int {
	return int(l.cursor.Load())
}

// Cap returns the fixed capacity.
func (l *FileList) Cap() int {
	return len(l.paths)
}

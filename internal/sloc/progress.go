package sloc

import "sync/atomic"

// Progress holds live counters updated by the pipeline workers. All fields
// are atomic so they can be written from worker goroutines and read from
// the HTTP status handler without locks.
type Progress struct {
	FilesDiscovered atomic.Int64
	FilesCounted    atomic.Int64
	Lines           atomic.Int64
	BytesRead       atomic.Int64
	Errors          atomic.Int64
}

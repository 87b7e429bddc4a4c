package sloc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ErrFileTooLarge is the fatal error for a file bigger than the per-run
// read-buffer limit. Truncating the read instead would silently corrupt
// the count, so the run aborts and the operator raises the limit.
var ErrFileTooLarge = errors.New("file exceeds read-buffer limit")

// counter owns one counting worker's scratch state. The read buffer is
// allocated once and reused for every assigned file; it is never shared,
// so the per-file hot path needs no locking at all.
type counter struct {
	buf           []byte
	maxFileSize   int64
	perFileCounts bool
}

func newCounter(maxFileSize int64, perFileCounts bool) *counter {
	return &counter{maxFileSize: maxFileSize, perFileCounts: perFileCounts}
}

// countFiles analyses the worker's span of the frozen file list,
// accumulating the subtotal and diagnostics into res. Per-file failures
// (open, short read, unterminated comment) are logged and skipped; the
// only errors returned are fatal ones. On return the subtotal has been
// folded into total with a single atomic add — order-independent, so it is
// safe alongside the other workers' adds.
func (c *counter) countFiles(
	ctx context.Context,
	list *FileList,
	span Span,
	progress *Progress,
	res *Result,
	total *atomic.Int64,
) error {
	for i := 0; i < span.Size; i++ {
		if ctx.Err() != nil {
			break
		}

		path := list.At(span.Offset + i)
		n, err := c.countFile(path, progress)
		if errors.Is(err, ErrFileTooLarge) {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err != nil {
			res.logError(fmt.Sprintf("%s: %v", path, err))
			progress.Errors.Add(1)
			continue
		}

		res.Subtotal += int64(n)
		res.Files++
		progress.FilesCounted.Add(1)
		progress.Lines.Add(int64(n))
		if c.perFileCounts {
			res.Detail = append(res.Detail, fmt.Sprintf("%s: %d sloc", path, n))
		}
	}

	total.Add(res.Subtotal)
	return nil
}

// countFile reads one file into the reused buffer, strips comments, and
// counts its source lines.
func (c *counter) countFile(path string, progress *Progress) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size > c.maxFileSize {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, c.maxFileSize)
	}

	if int64(cap(c.buf)) < size {
		c.buf = make([]byte, size)
	}
	buf := c.buf[:size]
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	progress.BytesRead.Add(size)

	stripped, err := StripComments(buf)
	if err != nil {
		return 0, err
	}
	return CountLines(stripped), nil
}

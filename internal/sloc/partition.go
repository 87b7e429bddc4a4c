package sloc

// Span is a contiguous slice of a work array assigned to one worker.
type Span struct {
	Offset int
	Size   int
}

// Partition splits itemCount items into workerCount contiguous spans.
// Sizes differ by at most one, offsets are strictly increasing, and the
// spans cover [0, itemCount) exactly. When there are fewer items than
// workers the empty spans land on the highest worker indices, so low-index
// workers always receive real work first. workerCount must be >= 1.
func Partition(itemCount, workerCount int) []Span {
	spans := make([]Span, workerCount)

	base := itemCount / workerCount
	extra := itemCount % workerCount

	offset := 0
	for i := range spans {
		size := base
		if i < extra {
			size++
		}
		spans[i] = Span{Offset: offset, Size: size}
		offset += size
	}
	return spans
}

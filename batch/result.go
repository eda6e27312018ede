package batch

import "context"

// Result holds the outcome for a single input item.
type Result[O any] struct {
	// Index is the item's position in the input sequence.
	Index int
	// Value is the processed result when Err is nil.
	Value O
	// Err is the failure for this item, nil on success.
	Err error
}

// OK reports whether the item was processed successfully.
func (r Result[O]) OK() bool { return r.Err == nil }

// ItemFunc processes one item.
type ItemFunc[I, O any] func(ctx context.Context, item I) (O, error)

// BulkFunc processes one whole chunk as a single call. It must return one
// result per input item, in input order.
type BulkFunc[I, O any] func(ctx context.Context, chunk []I) ([]O, error)

// ChunkFunc is invoked after each chunk completes with the cumulative number
// of processed items and the input total. Calls are serialized.
type ChunkFunc func(completed, total int)

// Tally counts successes and failures in a result set.
func Tally[O any](results []Result[O]) (succeeded, failed int) {
	for _, r := range results {
		if r.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Values extracts the successful values in input order, skipping failures.
func Values[O any](results []Result[O]) []O {
	out := make([]O, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Value)
		}
	}
	return out
}

package batch

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/resilience"
)

// Options configures a batch run.
type Options struct {
	// BatchSize is the maximum number of items per chunk. Required, >= 1.
	BatchSize int
	// MaxConcurrency caps the number of chunks in flight. Required, >= 1.
	MaxConcurrency int
	// Retry configures bulk-call retries before the degrade path. Zero
	// value means resilience defaults (3 attempts).
	Retry resilience.RetryConfig
	// Logger overrides the default component logger.
	Logger *logger.Logger
}

func (o *Options) validate() error {
	if o.BatchSize < 1 {
		return errors.InvalidInput("batch_size", "must be at least 1")
	}
	if o.MaxConcurrency < 1 {
		return errors.InvalidInput("max_concurrency", "must be at least 1")
	}
	return nil
}

func (o *Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.WithComponent("batch")
}

// Chunk describes one contiguous partition of the input.
type Chunk struct {
	// Index is the chunk's position in dispatch order.
	Index int
	// Start and End are the half-open item bounds [Start, End).
	Start, End int
}

// Len returns the number of items in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// Chunks partitions n items into contiguous chunks of at most size items.
func Chunks(n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
	}
	return chunks
}

// Run processes items in per-item mode: each item is handed to fn
// independently, and one item's failure never affects its siblings.
//
// Run returns exactly one Result per input item, index-aligned with the
// input. It returns a non-nil error only for invalid options, a nil fn, or
// context cancellation; item failures are recorded in the results.
func Run[I, O any](ctx context.Context, items []I, opts Options, fn ItemFunc[I, O], onChunk ChunkFunc) ([]Result[O], error) {
	if fn == nil {
		return nil, errors.InvalidInput("fn", "processing function is required")
	}
	return execute(ctx, items, opts, onChunk, func(ctx context.Context, chunk Chunk, in []I, out []Result[O]) {
		for i, item := range in {
			value, err := fn(ctx, item)
			out[i] = Result[O]{Index: chunk.Start + i, Value: value, Err: err}
		}
	})
}

// RunBulk processes items in bulk mode: each chunk is issued as a single
// bulk call, retried per opts.Retry, and on exhaustion degraded to
// sequential per-item fallback calls for that chunk only.
//
// When fallback is nil the degrade path marks every item of the failed
// chunk with the bulk error instead of re-calling anything.
func RunBulk[I, O any](ctx context.Context, items []I, opts Options, bulk BulkFunc[I, O], fallback ItemFunc[I, O], onChunk ChunkFunc) ([]Result[O], error) {
	if bulk == nil {
		return nil, errors.InvalidInput("bulk", "bulk processing function is required")
	}
	log := opts.logger()

	return execute(ctx, items, opts, onChunk, func(ctx context.Context, chunk Chunk, in []I, out []Result[O]) {
		values, err := resilience.Retry(ctx, opts.Retry, func() ([]O, error) {
			vs, err := bulk(ctx, in)
			if err != nil {
				return nil, err
			}
			if len(vs) != len(in) {
				return nil, errors.InvalidInput("bulk", "result count does not match chunk size")
			}
			return vs, nil
		})
		if err == nil {
			for i, v := range values {
				out[i] = Result[O]{Index: chunk.Start + i, Value: v}
			}
			return
		}

		log.Warn("bulk call failed, degrading to per-item processing", logger.Fields(
			logger.FieldChunk, chunk.Index,
			"items", chunk.Len(),
			logger.FieldError, err.Error(),
		))

		for i, item := range in {
			idx := chunk.Start + i
			if fallback == nil {
				out[i] = Result[O]{Index: idx, Err: err}
				continue
			}
			value, itemErr := fallback(ctx, item)
			out[i] = Result[O]{Index: idx, Value: value, Err: itemErr}
		}
	})
}

// processFunc fills out (aligned with in) for one chunk. It must not panic
// across chunk boundaries; out has exactly chunk.Len() entries.
type processFunc[I, O any] func(ctx context.Context, chunk Chunk, in []I, out []Result[O])

// execute is the shared engine: partition, dispatch onto a bounded pool,
// re-assemble index-stable results, report chunk completions.
func execute[I, O any](ctx context.Context, items []I, opts Options, onChunk ChunkFunc, proc processFunc[I, O]) ([]Result[O], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	total := len(items)
	results := make([]Result[O], total)
	if total == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(opts.MaxConcurrency)
	if err != nil {
		return nil, errors.Internal(err)
	}
	defer pool.Release()

	log := opts.logger()
	chunks := Chunks(total, opts.BatchSize)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	dispatched := 0
	for _, chunk := range chunks {
		// Stop dispatching once the caller cancels; in-flight chunks finish.
		if ctx.Err() != nil {
			break
		}

		chunk := chunk
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			start := time.Now()

			in := items[chunk.Start:chunk.End]
			out := results[chunk.Start:chunk.End]
			proc(ctx, chunk, in, out)

			mu.Lock()
			completed += chunk.Len()
			done := completed
			mu.Unlock()

			log.Debug("chunk completed", logger.Fields(
				logger.FieldChunk, chunk.Index,
				"items", chunk.Len(),
				"completed", done,
				"total", total,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			))

			if onChunk != nil {
				mu.Lock()
				onChunk(done, total)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return results, errors.Internal(submitErr)
		}
		dispatched++
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Items of never-dispatched chunks carry the cancellation error.
		for _, chunk := range chunks[dispatched:] {
			for i := chunk.Start; i < chunk.End; i++ {
				results[i] = Result[O]{Index: i, Err: err}
			}
		}
		return results, err
	}
	return results, nil
}

package embedding

import (
	"context"

	"github.com/kbukum/batchkit/batch"
	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/resilience"
)

// MaxBatchSize is the provider-imposed ceiling on texts per bulk call.
const MaxBatchSize = 2048

// Options configures an embedding batch run.
type Options struct {
	// BatchSize is the number of texts per bulk call, clamped to
	// MaxBatchSize. Zero means MaxBatchSize.
	BatchSize int
	// MaxConcurrency caps concurrent bulk calls. Zero means 2, a
	// conservative default for provider rate limits.
	MaxConcurrency int
	// Retry configures bulk-call retries before the degrade path.
	Retry resilience.RetryConfig
}

func (o Options) batchOptions() batch.Options {
	size := o.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	concurrency := o.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return batch.Options{
		BatchSize:      size,
		MaxConcurrency: concurrency,
		Retry:          o.Retry,
	}
}

// EmbedBatch generates embeddings for texts in bulk mode, one result per
// input text in input order. Chunk-level provider failures are retried and
// then degraded to per-text calls; per-text failures are recorded in the
// results, never raised.
func EmbedBatch(ctx context.Context, texts []string, embedder Embedder, opts Options, onChunk batch.ChunkFunc) ([]batch.Result[[]float32], error) {
	if embedder == nil {
		return nil, errors.InvalidInput("embedder", "embedder is required")
	}

	return batch.RunBulk(ctx, texts, opts.batchOptions(),
		func(ctx context.Context, chunk []string) ([][]float32, error) {
			return embedder.EmbedTexts(ctx, chunk)
		},
		func(ctx context.Context, text string) ([]float32, error) {
			return embedder.EmbedText(ctx, text)
		},
		onChunk,
	)
}

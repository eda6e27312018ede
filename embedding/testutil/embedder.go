package testutil

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// Embedder is a test double for embedding.Embedder. Behavior is injectable
// via function fields; when unset, deterministic vectors derived from the
// text hash are returned so tests can assert stable outputs.
type Embedder struct {
	// EmbedTextFunc overrides EmbedText when set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)
	// EmbedTextsFunc overrides EmbedTexts when set.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	// Dim is the vector dimension for generated embeddings. Zero means 32.
	Dim int

	textCalls  atomic.Int64
	batchCalls atomic.Int64
}

// EmbedText generates a deterministic embedding based on the text hash.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.textCalls.Add(1)
	if e.EmbedTextFunc != nil {
		return e.EmbedTextFunc(ctx, text)
	}
	return deterministicVector(text, e.dim()), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls.Add(1)
	if e.EmbedTextsFunc != nil {
		return e.EmbedTextsFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, e.dim())
	}
	return vectors, nil
}

// TextCalls returns the number of EmbedText invocations.
func (e *Embedder) TextCalls() int { return int(e.textCalls.Load()) }

// BatchCalls returns the number of EmbedTexts invocations.
func (e *Embedder) BatchCalls() int { return int(e.batchCalls.Load()) }

func (e *Embedder) dim() int {
	if e.Dim > 0 {
		return e.Dim
	}
	return 32
}

// deterministicVector derives a stable pseudo-random vector from text using
// an FNV hash seed.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}

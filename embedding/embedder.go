package embedding

import "context"

// Embedder generates vector representations of text. Implementations wrap
// a provider client (OpenAI, Ollama, ...); batchkit only depends on this
// contract.
type Embedder interface {
	// EmbedText generates an embedding for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts generates embeddings for a batch of texts in one call.
	// It must return one vector per input text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

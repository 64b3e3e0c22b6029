// Package embedding provides text embedding providers and a TTL-bounded cache.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text.
// A provider failure must surface as an error; implementations never
// substitute synthetic vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

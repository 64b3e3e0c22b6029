package embedding

import (
	"context"
	"errors"
	"math"

	"github.com/hyperjump/kioku/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a unit-length
// vector derived from the text hash so the same text always embeds the same way.
type MockEmbedder struct {
	dimensions int
	// FailAll makes every call return an error, for testing provider-failure paths.
	FailAll bool
}

// ErrMockFailure is returned by a MockEmbedder configured to fail.
var ErrMockFailure = errors.New("mock embedder configured to fail")

// NewMockEmbedder returns an embedder producing deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.FailAll {
		return nil, ErrMockFailure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Mix in per-word hashes so texts sharing words land near each other,
	// which makes similarity ordering in tests meaningful.
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(text) {
		h := HashString(word)
		for i := 0; i < e.dimensions; i++ {
			emb[i] += float32(math.Sin(float64(h*(i+1))) * 0.1)
		}
	}
	if len(SplitWords(text)) == 0 {
		h := HashString(text)
		for i := 0; i < e.dimensions; i++ {
			emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// Package embed provides the Embedder abstraction used to turn chunk
// text into vectors: a dependency-free hash-based fallback, an
// HTTP-backed semantic model client, and LRU-cache/retry decorators
// that wrap either.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch requests to bound memory use.
	MaxBatchSize = 256

	// StaticDimensions is the embedding dimension for the hash-based
	// fallback embedder.
	StaticDimensions = 256

	// DefaultHTTPDimensions is the dimension an HTTP embedder expects
	// when HTTPConfig.Dimensions is not set; responses of any other
	// length are rejected with a dimension-mismatch error.
	DefaultHTTPDimensions = 768
)

// Embedder generates vector embeddings for chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit length, returning it unchanged if
// it has zero magnitude.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

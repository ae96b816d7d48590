package embedding

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned when the sink is used before its
// initialization sequence completes.
var ErrNotInitialized = errors.New("embedding sink not initialized")

// Embedder converts texts into fixed-length vectors. Index and query
// embeddings must come from the same model or similarity is meaningless.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexObject is one (vector, text, metadata, id) entry upserted into
// the persistent similarity index.
type IndexObject struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Vector   []float32
}

// SimilarityResult is one ranked hit from a similarity query. Distance
// is a non-negative dissimilarity score, 0 meaning identical.
type SimilarityResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// VectorIndex is the persistent nearest-neighbor store. The vector math
// itself is the index's concern; only batching and adaptation live here.
type VectorIndex interface {
	// EnsureReady creates the backing class/collection if it is absent.
	EnsureReady(ctx context.Context) error
	// Count reports the number of objects currently indexed.
	Count(ctx context.Context) (int, error)
	// AddObjects upserts a batch of objects.
	AddObjects(ctx context.Context, objects []IndexObject) error
	// QueryNearest returns up to limit hits ordered by ascending distance.
	QueryNearest(ctx context.Context, vector []float32, limit int) ([]SimilarityResult, error)
}

package embedding

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"datachat/src/core/ingestion"
	"datachat/src/log"
)

const (
	stateUninitialized int32 = iota
	stateInitializing
	stateReady
)

// Sink converts batches of document texts into vectors and upserts them
// into the persistent index, and answers top-k similarity queries.
// Embedding calls are CPU/accelerator-bound and run on a bounded worker
// pool so they never block request handling.
type Sink struct {
	embedder Embedder
	index    VectorIndex
	pool     *ants.Pool
	state    atomic.Int32
}

// SinkOption configures a Sink.
type SinkOption func(*Sink) error

// WithPoolSize sets the embedding worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) SinkOption {
	return func(s *Sink) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// NewSink creates an uninitialized sink. Initialize must complete before
// AddDocuments or SearchSimilar may be called.
func NewSink(embedder Embedder, index VectorIndex, opts ...SinkOption) (*Sink, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		embedder: embedder,
		index:    index,
		pool:     pool,
	}
	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	return s, nil
}

// Initialize opens or creates the persistent index and marks the sink
// ready. Calls racing Initialize fail with ErrNotInitialized until the
// sequence completes.
func (s *Sink) Initialize(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateUninitialized, stateInitializing) {
		if s.state.Load() == stateReady {
			return nil
		}
		return fmt.Errorf("sink initialization already in progress")
	}

	if err := s.index.EnsureReady(ctx); err != nil {
		s.state.Store(stateUninitialized)
		return fmt.Errorf("failed to prepare vector index: %w", err)
	}

	s.state.Store(stateReady)
	log.Info("embedding sink ready")
	return nil
}

// Ready reports whether initialization has completed.
func (s *Sink) Ready() bool {
	return s.state.Load() == stateReady
}

// IndexSize reports the number of documents currently indexed.
func (s *Sink) IndexSize(ctx context.Context) (int, error) {
	if !s.Ready() {
		return 0, ErrNotInitialized
	}
	return s.index.Count(ctx)
}

// AddDocuments embeds and upserts the given documents. Documents whose
// text is empty after trimming are skipped. Returns the count actually
// added.
func (s *Sink) AddDocuments(ctx context.Context, docs []ingestion.Document) (int, error) {
	if !s.Ready() {
		return 0, ErrNotInitialized
	}

	kept := make([]ingestion.Document, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		kept = append(kept, doc)
		texts = append(texts, doc.Text)
	}
	if len(kept) == 0 {
		log.Info("no embeddable texts in batch, nothing added")
		return 0, nil
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(kept) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, received %d", len(kept), len(vectors))
	}

	objects := make([]IndexObject, len(kept))
	for i, doc := range kept {
		objects[i] = IndexObject{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Vector:   vectors[i],
		}
	}

	if err := s.index.AddObjects(ctx, objects); err != nil {
		return 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return len(objects), nil
}

// SearchSimilar embeds the query with the indexing model and returns the
// top-k nearest documents ordered by ascending distance. k is clamped to
// the current index size.
func (s *Sink) SearchSimilar(ctx context.Context, query string, k int) ([]SimilarityResult, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		return []SimilarityResult{}, nil
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count indexed documents: %w", err)
	}
	if count < k {
		k = count
	}
	if k == 0 {
		return []SimilarityResult{}, nil
	}

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.QueryNearest(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}

// embed runs the embedder on the worker pool and waits for the result,
// honoring context cancellation.
func (s *Sink) embed(ctx context.Context, texts []string) ([][]float32, error) {
	type embedResult struct {
		vectors [][]float32
		err     error
	}
	ch := make(chan embedResult, 1)

	if err := s.pool.Submit(func() {
		vectors, err := s.embedder.EmbedTexts(ctx, texts)
		ch <- embedResult{vectors: vectors, err: err}
	}); err != nil {
		return nil, fmt.Errorf("failed to submit embedding task: %w", err)
	}

	select {
	case res := <-ch:
		return res.vectors, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release frees the worker pool. The sink must not be used afterwards.
func (s *Sink) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

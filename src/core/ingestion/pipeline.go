package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"

	"datachat/src/log"
	"datachat/src/source"
)

// Sink receives batches of projected documents. Implemented by the
// embedding vector sink; tests substitute a recording fake.
type Sink interface {
	// AddDocuments embeds and upserts the documents, returning the count
	// actually indexed (documents with empty text are skipped).
	AddDocuments(ctx context.Context, docs []Document) (int, error)
}

// Progress is called after every flush with the number of source records
// processed so far.
type Progress func(processed int)

// Pipeline pulls records from a source reader in fixed-size chunks,
// normalizes and projects them and flushes document batches to the sink.
// Memory is bounded by one batch regardless of source size.
type Pipeline struct {
	sink Sink
}

// NewPipeline creates a pipeline writing to the given sink.
func NewPipeline(sink Sink) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	return &Pipeline{sink: sink}, nil
}

// Run ingests the whole source through the sink. It returns the total
// number of documents indexed. On error, batches flushed before the
// failure remain indexed; there is no cross-batch rollback. The reader
// is closed on every exit path. onProgress may be nil.
func (p *Pipeline) Run(ctx context.Context, reader source.Reader, cfg Config, tags Tags, onProgress Progress) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid ingestion config: %w", err)
	}

	if err := reader.Open(ctx); err != nil {
		return 0, err
	}
	defer reader.Close()

	batchSize := cfg.EffectiveBatchSize()
	pending := make([]Document, 0, batchSize)
	indexed := 0
	processed := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		count, err := p.sink.AddDocuments(ctx, pending)
		if err != nil {
			return fmt.Errorf("failed to flush batch of %d documents: %w", len(pending), err)
		}
		indexed += count
		pending = pending[:0]
		if onProgress != nil {
			onProgress(processed)
		}
		log.Debug("flushed ingestion batch", "indexed", indexed, "processed", processed)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		chunk, err := reader.ReadChunk(ctx, batchSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return indexed, err
		}

		for _, raw := range chunk {
			normalized, normErr := Normalize(raw, cfg.Schema, processed)
			if normErr != nil {
				// A schema violation is fatal for the whole load; the
				// current partial batch is abandoned unflushed.
				return indexed, normErr
			}
			processed++

			doc := Project(normalized, cfg.TextFields, cfg.MetadataFields, tags)
			if doc == nil {
				continue
			}
			pending = append(pending, *doc)
			if len(pending) >= batchSize {
				if flushErr := flush(); flushErr != nil {
					return indexed, flushErr
				}
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	if err := flush(); err != nil {
		return indexed, err
	}

	log.Info("ingestion run completed", "processed", processed, "indexed", indexed)
	return indexed, nil
}

package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/src/core/ingestion"
	"datachat/src/source"
)

// fakeReader streams a fixed record slice in chunks.
type fakeReader struct {
	records []source.Record
	pos     int
	opened  bool
	closed  bool
	openErr error
}

func (r *fakeReader) Open(ctx context.Context) error {
	if r.openErr != nil {
		return r.openErr
	}
	r.opened = true
	return nil
}

func (r *fakeReader) ReadChunk(ctx context.Context, size int) ([]source.Record, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	end := r.pos + size
	if end > len(r.records) {
		end = len(r.records)
	}
	chunk := r.records[r.pos:end]
	r.pos = end
	return chunk, nil
}

func (r *fakeReader) ReadSchema(ctx context.Context) (map[string]string, error) {
	return nil, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

// recordingSink captures flushed batches.
type recordingSink struct {
	batches [][]ingestion.Document
	failOn  int // 1-based batch index to fail on, 0 means never
}

func (s *recordingSink) AddDocuments(ctx context.Context, docs []ingestion.Document) (int, error) {
	if s.failOn > 0 && len(s.batches)+1 == s.failOn {
		return 0, errors.New("index unavailable")
	}
	batch := make([]ingestion.Document, len(docs))
	copy(batch, docs)
	s.batches = append(s.batches, batch)
	return len(docs), nil
}

func (s *recordingSink) total() int {
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func productConfig(batchSize int) ingestion.Config {
	return ingestion.Config{
		Schema: []ingestion.FieldSchema{
			{Name: "title", Type: ingestion.FieldTypeText, Required: true},
			{Name: "price", Type: ingestion.FieldTypeFloat},
		},
		TextFields: []string{"title"},
		BatchSize:  batchSize,
	}
}

func productRecords(n int) []source.Record {
	records := make([]source.Record, n)
	for i := range records {
		records[i] = source.Record{
			"title": fmt.Sprintf("product %d", i),
			"price": float64(i),
		}
	}
	return records
}

func TestPipelineFlushesInBatches(t *testing.T) {
	reader := &fakeReader{records: productRecords(3)}
	sink := &recordingSink{}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	var checkpoints []int
	indexed, err := pipeline.Run(context.Background(), reader, productConfig(2), nil, func(processed int) {
		checkpoints = append(checkpoints, processed)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, indexed)
	require.Len(t, sink.batches, 2, "3 records at batch size 2 flush as [2, 1]")
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 1)
	assert.Equal(t, []int{2, 3}, checkpoints)
	assert.True(t, reader.closed, "reader must be closed after the run")
}

func TestPipelineBoundsBatchSize(t *testing.T) {
	reader := &fakeReader{records: productRecords(25)}
	sink := &recordingSink{}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	indexed, err := pipeline.Run(context.Background(), reader, productConfig(10), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 25, indexed)
	for _, batch := range sink.batches {
		assert.LessOrEqual(t, len(batch), 10, "no flush may exceed the batch size")
	}
}

func TestPipelineSkipsEmptyText(t *testing.T) {
	reader := &fakeReader{records: []source.Record{
		{"title": "kept", "price": 1.0},
		{"title": "   ", "price": 2.0},
		{"title": "also kept", "price": 3.0},
	}}
	sink := &recordingSink{}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	// title is optional here so a blank value does not abort the load.
	cfg := ingestion.Config{
		Schema: []ingestion.FieldSchema{
			{Name: "title", Type: ingestion.FieldTypeText},
			{Name: "price", Type: ingestion.FieldTypeFloat},
		},
		TextFields: []string{"title"},
	}

	indexed, err := pipeline.Run(context.Background(), reader, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed, "whitespace-only text must be skipped, not indexed")
}

func TestPipelineSchemaViolationKeepsFlushedBatches(t *testing.T) {
	records := productRecords(3)
	delete(records[2], "title") // violates required title at record 2
	reader := &fakeReader{records: records}
	sink := &recordingSink{}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	indexed, err := pipeline.Run(context.Background(), reader, productConfig(2), nil, nil)

	var sve *ingestion.SchemaViolationError
	require.ErrorAs(t, err, &sve)
	assert.Equal(t, "title", sve.Field)
	assert.Equal(t, 2, sve.Record)
	assert.Equal(t, 2, indexed, "the batch flushed before the violation stays indexed")
	assert.Equal(t, 2, sink.total())
	assert.True(t, reader.closed)
}

func TestPipelineSinkErrorAborts(t *testing.T) {
	reader := &fakeReader{records: productRecords(5)}
	sink := &recordingSink{failOn: 2}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	indexed, err := pipeline.Run(context.Background(), reader, productConfig(2), nil, nil)
	require.Error(t, err)
	assert.Equal(t, 2, indexed, "only the first flushed batch counts")
}

func TestPipelineNoDeduplicationAcrossRuns(t *testing.T) {
	sink := &recordingSink{}
	pipeline, err := ingestion.NewPipeline(sink)
	require.NoError(t, err)

	for run := 0; run < 2; run++ {
		reader := &fakeReader{records: productRecords(2)}
		indexed, runErr := pipeline.Run(context.Background(), reader, productConfig(10), nil, nil)
		require.NoError(t, runErr)
		assert.Equal(t, 2, indexed)
	}

	assert.Equal(t, 4, sink.total(), "re-ingesting the same source duplicates documents")

	ids := make(map[string]bool)
	for _, batch := range sink.batches {
		for _, doc := range batch {
			assert.False(t, ids[doc.ID], "every document gets a fresh id")
			ids[doc.ID] = true
		}
	}
}

func TestPipelineInvalidConfig(t *testing.T) {
	pipeline, err := ingestion.NewPipeline(&recordingSink{})
	require.NoError(t, err)

	reader := &fakeReader{records: productRecords(1)}
	_, err = pipeline.Run(context.Background(), reader, ingestion.Config{}, nil, nil)
	require.Error(t, err)
	assert.False(t, reader.opened, "invalid config must fail before any I/O")
}

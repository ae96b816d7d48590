package job

import (
	"context"
	"encoding/json"
	"fmt"

	"datachat/src/core/ingestion"
	"datachat/src/source"
)

// IngestPayload is the serialized form of one queued ingestion batch.
type IngestPayload struct {
	Source    source.Config    `json:"source"`
	Ingestion ingestion.Config `json:"ingestion"`
	Tags      ingestion.Tags   `json:"tags,omitempty"`
}

// Stager fetches a staged object into a local temp file. The returned
// cleanup function removes the file.
type Stager interface {
	DownloadToTemp(ctx context.Context, bucket, object string) (string, func(), error)
}

// IngestTask runs one ingestion batch end to end: stage the source if
// needed, open a reader and drive the pipeline into the vector sink.
type IngestTask struct {
	pipeline *ingestion.Pipeline
	stager   Stager
}

// NewIngestTask wires the task. The stager may be nil when no staged
// sources are used.
func NewIngestTask(pipeline *ingestion.Pipeline, stager Stager) *IngestTask {
	return &IngestTask{
		pipeline: pipeline,
		stager:   stager,
	}
}

// HandleIngestion decodes the payload and runs the batch. It returns
// the number of documents indexed, including flushed batches preceding
// a failure.
func (t *IngestTask) HandleIngestion(ctx context.Context, payload json.RawMessage, onProgress ingestion.Progress) (int, error) {
	var p IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ingestion payload: %w", err)
	}

	tags := ingestion.Tags{"source": string(p.Source.Kind)}
	if p.Source.Kind == source.KindCSV && p.Source.CSV != nil {
		// For staged sources the tag keeps the bucket/object reference,
		// not the throwaway temp path.
		tags["file_path"] = p.Source.CSV.FilePath
		if p.Source.CSV.Bucket != "" {
			tags["file_path"] = p.Source.CSV.Bucket + "/" + p.Source.CSV.Object
		}
	}
	for k, v := range p.Tags {
		tags[k] = v
	}

	if p.Source.Kind == source.KindCSV && p.Source.CSV != nil && p.Source.CSV.Bucket != "" {
		if t.stager == nil {
			return 0, fmt.Errorf("staged source %s/%s requires object storage", p.Source.CSV.Bucket, p.Source.CSV.Object)
		}
		path, cleanup, err := t.stager.DownloadToTemp(ctx, p.Source.CSV.Bucket, p.Source.CSV.Object)
		if err != nil {
			return 0, fmt.Errorf("failed to stage source object: %w", err)
		}
		defer cleanup()
		p.Source.CSV.FilePath = path
	}

	reader, err := source.NewReader(p.Source)
	if err != nil {
		return 0, fmt.Errorf("failed to create source reader: %w", err)
	}

	return t.pipeline.Run(ctx, reader, p.Ingestion, tags, onProgress)
}

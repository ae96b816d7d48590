package job

import (
	"context"
	"encoding/json"
	"time"
)

// BatchStatus defines the lifecycle state of an ingestion batch.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// IngestionJob tracks one background ingestion batch.
type IngestionJob struct {
	ID        int             `json:"id"`
	BatchID   string          `gorm:"uniqueIndex" json:"batch_id"`
	Payload   json.RawMessage `json:"payload"`
	Status    BatchStatus     `json:"status"`
	Total     int             `json:"total"` // 0 until the batch completes
	Processed int             `json:"processed"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Repository defines the interface for ingestion job persistence.
type Repository interface {
	Create(ctx context.Context, batchID string, payload json.RawMessage) (*IngestionJob, error)
	GetByBatchID(ctx context.Context, batchID string) (*IngestionJob, error)
	UpdateStatus(ctx context.Context, batchID string, status BatchStatus, err *string) error
	UpdateProgress(ctx context.Context, batchID string, processed int) error
	// Complete marks the batch completed with its final document count.
	Complete(ctx context.Context, batchID string, total int) error
}

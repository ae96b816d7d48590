package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bwmarrin/snowflake"
)

// IngestionTopic is the queue topic ingestion batches are published to.
const IngestionTopic = "ingestion_jobs"

type Service struct {
	publisher message.Publisher
	repo      Repository
	logger    watermill.LoggerAdapter
	task      *IngestTask
	snowflake *snowflake.Node
}

type queueMessage struct {
	BatchID string          `json:"batch_id"`
	Payload json.RawMessage `json:"payload"`
}

func NewService(
	publisher message.Publisher,
	repo Repository,
	logger watermill.LoggerAdapter,
	task *IngestTask,
) (*Service, error) {
	node, err := snowflake.NewNode(2) // Node number 2 for ingestion batches
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &Service{
		publisher: publisher,
		repo:      repo,
		logger:    logger,
		task:      task,
		snowflake: node,
	}, nil
}

// Enqueue records a new ingestion batch as queued and publishes it.
// The returned job carries the batch id for status polling.
func (s *Service) Enqueue(ctx context.Context, payload IngestPayload) (*IngestionJob, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingestion payload: %w", err)
	}

	batchID := s.snowflake.Generate().String()
	ingestion, err := s.repo.Create(ctx, batchID, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}

	msgPayload, err := json.Marshal(queueMessage{
		BatchID: ingestion.BatchID,
		Payload: ingestion.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(IngestionTopic, msg); err != nil {
		return nil, fmt.Errorf("failed to publish ingestion job: %w", err)
	}

	return ingestion, nil
}

// Status returns the tracked job for a batch id, or nil when unknown.
func (s *Service) Status(ctx context.Context, batchID string) (*IngestionJob, error) {
	return s.repo.GetByBatchID(ctx, batchID)
}

// ProcessMessage consumes one queued batch: mark it processing, run the
// ingest task with progress checkpoints, then record the outcome.
func (s *Service) ProcessMessage(msg *message.Message) error {
	var queued queueMessage
	if err := json.Unmarshal(msg.Payload, &queued); err != nil {
		return fmt.Errorf("failed to unmarshal queue message: %w", err)
	}

	ctx := msg.Context()

	if err := s.repo.UpdateStatus(ctx, queued.BatchID, BatchStatusProcessing, nil); err != nil {
		return fmt.Errorf("failed to update job status to processing: %w", err)
	}

	onProgress := func(processed int) {
		if err := s.repo.UpdateProgress(ctx, queued.BatchID, processed); err != nil {
			s.logger.Error("Failed to update ingestion progress", err, watermill.LogFields{
				"batch_id": queued.BatchID,
			})
		}
	}

	indexed, err := s.task.HandleIngestion(ctx, queued.Payload, onProgress)
	if err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, queued.BatchID, BatchStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"batch_id": queued.BatchID,
			})
		}
		return fmt.Errorf("failed to process ingestion job: %w", err)
	}

	if err := s.repo.Complete(ctx, queued.BatchID, indexed); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	s.logger.Info("Ingestion batch completed", watermill.LogFields{
		"batch_id": queued.BatchID,
		"indexed":  indexed,
	})
	return nil
}

package job

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) (*PostgresRepository, error) {
	if err := db.AutoMigrate(&IngestionJob{}); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, batchID string, payload json.RawMessage) (*IngestionJob, error) {
	ingestion := &IngestionJob{
		BatchID: batchID,
		Payload: payload,
		Status:  BatchStatusQueued,
	}

	result := r.db.WithContext(ctx).Create(ingestion)
	if result.Error != nil {
		return nil, result.Error
	}

	return ingestion, nil
}

func (r *PostgresRepository) GetByBatchID(ctx context.Context, batchID string) (*IngestionJob, error) {
	var ingestion IngestionJob
	result := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&ingestion)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &ingestion, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, batchID string, status BatchStatus, err *string) error {
	result := r.db.WithContext(ctx).Model(&IngestionJob{}).Where("batch_id = ?", batchID).Updates(map[string]interface{}{
		"status": status,
		"error":  err,
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.New("ingestion job not found")
	}

	return nil
}

func (r *PostgresRepository) UpdateProgress(ctx context.Context, batchID string, processed int) error {
	result := r.db.WithContext(ctx).Model(&IngestionJob{}).Where("batch_id = ?", batchID).
		Update("processed", processed)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.New("ingestion job not found")
	}

	return nil
}

func (r *PostgresRepository) Complete(ctx context.Context, batchID string, total int) error {
	result := r.db.WithContext(ctx).Model(&IngestionJob{}).Where("batch_id = ?", batchID).Updates(map[string]interface{}{
		"status":    BatchStatusCompleted,
		"total":     total,
		"processed": total,
		"error":     nil,
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errors.New("ingestion job not found")
	}

	return nil
}

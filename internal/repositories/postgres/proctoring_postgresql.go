package postgres

import (
	"context"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

const proctoringBatchSize = 100

type ProctoringEventPostgreSQL struct {
	db *gorm.DB
}

func NewProctoringEventPostgreSQL(db *gorm.DB) repositories.ProctoringEventRepository {
	return &ProctoringEventPostgreSQL{db: db}
}

func (p ProctoringEventPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, events []*models.ProctoringEvent) error {
	if len(events) == 0 {
		return nil
	}
	return getDB(p.db, tx).WithContext(ctx).CreateInBatches(events, proctoringBatchSize).Error
}

func (p ProctoringEventPostgreSQL) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID string) ([]models.ProctoringEvent, error) {
	var events []models.ProctoringEvent
	err := getDB(p.db, tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

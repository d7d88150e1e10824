package postgres

import (
	"context"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error {
	return getDB(a.db, tx).WithContext(ctx).Create(attempt).Error
}

func (a AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error {
	return getDB(a.db, tx).WithContext(ctx).Save(attempt).Error
}

func (a AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.AttemptRecord, error) {
	var attempt models.AttemptRecord
	if err := getDB(a.db, tx).WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) LatestByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (*models.AttemptRecord, error) {
	var attempt models.AttemptRecord
	err := getDB(a.db, tx).WithContext(ctx).
		Where("learner_id = ? AND quiz_id = ?", learnerID, quizID).
		Order("attempt_number DESC, started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) CountByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (int, error) {
	var count int64
	err := getDB(a.db, tx).WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("learner_id = ? AND quiz_id = ?", learnerID, quizID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

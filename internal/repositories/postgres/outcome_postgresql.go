package postgres

import (
	"context"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type OutcomePostgreSQL struct {
	db *gorm.DB
}

func NewOutcomePostgreSQL(db *gorm.DB) repositories.OutcomeRepository {
	return &OutcomePostgreSQL{db: db}
}

func (o OutcomePostgreSQL) EnsureEntered(ctx context.Context, tx *gorm.DB, scope repositories.OutcomeScope) (*models.ModuleOutcome, error) {
	outcome := models.ModuleOutcome{
		LearnerID:  scope.LearnerID,
		TrainingID: scope.TrainingID,
		ModuleID:   scope.ModuleID,
		FinalExam:  scope.FinalExam,
	}
	err := scoped(getDB(o.db, tx).WithContext(ctx), scope).FirstOrCreate(&outcome).Error
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (o OutcomePostgreSQL) Save(ctx context.Context, tx *gorm.DB, outcome *models.ModuleOutcome) error {
	return getDB(o.db, tx).WithContext(ctx).Save(outcome).Error
}

func (o OutcomePostgreSQL) Reset(ctx context.Context, tx *gorm.DB, scope repositories.OutcomeScope) error {
	return scoped(getDB(o.db, tx).WithContext(ctx).Model(&models.ModuleOutcome{}), scope).
		Updates(map[string]interface{}{
			"attempted":    false,
			"passed":       false,
			"score":        0,
			"attempt_id":   nil,
			"completed_at": nil,
		}).Error
}

func (o OutcomePostgreSQL) ListByTraining(ctx context.Context, tx *gorm.DB, learnerID, trainingID string) ([]models.ModuleOutcome, error) {
	var outcomes []models.ModuleOutcome
	err := getDB(o.db, tx).WithContext(ctx).
		Where("learner_id = ? AND training_id = ?", learnerID, trainingID).
		Find(&outcomes).Error
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

func scoped(db *gorm.DB, scope repositories.OutcomeScope) *gorm.DB {
	return db.Where("learner_id = ? AND training_id = ? AND module_id = ? AND final_exam = ?",
		scope.LearnerID, scope.TrainingID, scope.ModuleID, scope.FinalExam)
}

package postgres

import (
	"context"

	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db               *gorm.DB
	attempts         repositories.AttemptRepository
	outcomes         repositories.OutcomeRepository
	proctoringEvents repositories.ProctoringEventRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:               db,
		attempts:         NewAttemptPostgreSQL(db),
		outcomes:         NewOutcomePostgreSQL(db),
		proctoringEvents: NewProctoringEventPostgreSQL(db),
	}
}

func (r *repository) Attempts() repositories.AttemptRepository {
	return r.attempts
}

func (r *repository) Outcomes() repositories.OutcomeRepository {
	return r.outcomes
}

func (r *repository) ProctoringEvents() repositories.ProctoringEventRepository {
	return r.proctoringEvents
}

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func getDB(base, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return base
}

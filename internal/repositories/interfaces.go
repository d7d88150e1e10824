package repositories

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"gorm.io/gorm"
)

// Every method takes an optional transaction; a nil tx runs on the base
// connection.

// AttemptRepository persists the audit trail of quiz attempts
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error
	Update(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.AttemptRecord, error)
	// LatestByLearnerAndQuiz returns gorm.ErrRecordNotFound when the learner
	// never attempted the quiz.
	LatestByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (*models.AttemptRecord, error)
	CountByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (int, error)
}

// OutcomeRepository persists module and final exam outcomes
type OutcomeRepository interface {
	// EnsureEntered returns the outcome row for the scope, creating an empty
	// one on first entry.
	EnsureEntered(ctx context.Context, tx *gorm.DB, scope OutcomeScope) (*models.ModuleOutcome, error)
	Save(ctx context.Context, tx *gorm.DB, outcome *models.ModuleOutcome) error
	Reset(ctx context.Context, tx *gorm.DB, scope OutcomeScope) error
	ListByTraining(ctx context.Context, tx *gorm.DB, learnerID, trainingID string) ([]models.ModuleOutcome, error)
}

// ProctoringEventRepository persists every observed integrity signal
type ProctoringEventRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, events []*models.ProctoringEvent) error
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID string) ([]models.ProctoringEvent, error)
}

// Repository groups the repositories and owns transactions
type Repository interface {
	Attempts() AttemptRepository
	Outcomes() OutcomeRepository
	ProctoringEvents() ProctoringEventRepository
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutcomeScope identifies one outcome row. ModuleID is empty for the final exam.
type OutcomeScope struct {
	LearnerID  string
	TrainingID string
	ModuleID   string
	FinalExam  bool
}

func ScopeOf(learnerID string, quiz *models.Quiz) OutcomeScope {
	return OutcomeScope{
		LearnerID:  learnerID,
		TrainingID: quiz.TrainingID,
		ModuleID:   quiz.ModuleID,
		FinalExam:  quiz.IsFinalExam(),
	}
}

// IsNotFoundError reports whether err is gorm's missing-row error
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
)

// MockRepository groups the mock repositories; transactions run inline.
type MockRepository struct {
	attempts *MockAttemptRepository
	outcomes *MockOutcomeRepository
	signals  *MockProctoringEventRepository
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		attempts: &MockAttemptRepository{},
		outcomes: &MockOutcomeRepository{},
		signals:  &MockProctoringEventRepository{},
	}
}

func (m *MockRepository) Attempts() repositories.AttemptRepository { return m.attempts }
func (m *MockRepository) Outcomes() repositories.OutcomeRepository { return m.outcomes }
func (m *MockRepository) ProctoringEvents() repositories.ProctoringEventRepository {
	return m.signals
}

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// MockAttemptRepository is a mock implementation of AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error {
	args := m.Called(ctx, tx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) Update(ctx context.Context, tx *gorm.DB, attempt *models.AttemptRecord) error {
	args := m.Called(ctx, tx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.AttemptRecord, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttemptRecord), args.Error(1)
}

func (m *MockAttemptRepository) LatestByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (*models.AttemptRecord, error) {
	args := m.Called(ctx, tx, learnerID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AttemptRecord), args.Error(1)
}

func (m *MockAttemptRepository) CountByLearnerAndQuiz(ctx context.Context, tx *gorm.DB, learnerID, quizID string) (int, error) {
	args := m.Called(ctx, tx, learnerID, quizID)
	return args.Int(0), args.Error(1)
}

// MockOutcomeRepository is a mock implementation of OutcomeRepository
type MockOutcomeRepository struct {
	mock.Mock
}

func (m *MockOutcomeRepository) EnsureEntered(ctx context.Context, tx *gorm.DB, scope repositories.OutcomeScope) (*models.ModuleOutcome, error) {
	args := m.Called(ctx, tx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModuleOutcome), args.Error(1)
}

func (m *MockOutcomeRepository) Save(ctx context.Context, tx *gorm.DB, outcome *models.ModuleOutcome) error {
	args := m.Called(ctx, tx, outcome)
	return args.Error(0)
}

func (m *MockOutcomeRepository) Reset(ctx context.Context, tx *gorm.DB, scope repositories.OutcomeScope) error {
	args := m.Called(ctx, tx, scope)
	return args.Error(0)
}

func (m *MockOutcomeRepository) ListByTraining(ctx context.Context, tx *gorm.DB, learnerID, trainingID string) ([]models.ModuleOutcome, error) {
	args := m.Called(ctx, tx, learnerID, trainingID)
	return args.Get(0).([]models.ModuleOutcome), args.Error(1)
}

// MockProctoringEventRepository is a mock implementation of ProctoringEventRepository
type MockProctoringEventRepository struct {
	mock.Mock
}

func (m *MockProctoringEventRepository) CreateBatch(ctx context.Context, tx *gorm.DB, events []*models.ProctoringEvent) error {
	args := m.Called(ctx, tx, events)
	return args.Error(0)
}

func (m *MockProctoringEventRepository) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID string) ([]models.ProctoringEvent, error) {
	args := m.Called(ctx, tx, attemptID)
	return args.Get(0).([]models.ProctoringEvent), args.Error(1)
}

// MockContentSource is a mock implementation of ContentSource
type MockContentSource struct {
	mock.Mock
}

func (m *MockContentSource) GetTraining(ctx context.Context, trainingID string) (*models.Training, error) {
	args := m.Called(ctx, trainingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Training), args.Error(1)
}

func (m *MockContentSource) GetModuleQuiz(ctx context.Context, moduleID string) (*models.Quiz, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *MockContentSource) GetFinalExam(ctx context.Context, trainingID string) (*models.Quiz, error) {
	args := m.Called(ctx, trainingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quiz), args.Error(1)
}

// MockSubmitter is a mock grading server
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, quiz *models.Quiz, payload *models.SubmissionPayload) (*models.SubmissionVerdict, error) {
	args := m.Called(ctx, quiz, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmissionVerdict), args.Error(1)
}

// MockCache is a mock CacheService
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

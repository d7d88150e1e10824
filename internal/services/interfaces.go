package services

import (
	"context"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/progression"
)

// ===== REQUESTS =====

type StartAttemptRequest struct {
	TrainingID string `json:"training_id" validate:"required,max=255"`
	ModuleID   string `json:"module_id,omitempty" validate:"required_without=FinalExam,max=255"`
	FinalExam  bool   `json:"final_exam"`
	UserAgent  string `json:"-"`
}

type AnswerRequest struct {
	Index  *int          `json:"index" validate:"required,min=0"`
	Answer models.Answer `json:"answer"`
}

// NavigateRequest moves to Index, or one question back when Back is set.
type NavigateRequest struct {
	Index *int `json:"index" validate:"omitempty,min=0"`
	Back  bool `json:"back"`
}

type RetryRequest struct {
	Force bool `json:"force"`
}

// ===== RESPONSES =====

type SignalResponse struct {
	Observation proctoring.Observation `json:"observation"`
	Effective   bool                   `json:"effective"`
	View        *attempt.View          `json:"attempt"`
}

type NextResponse struct {
	Step *attempt.Step `json:"step"`
	View *attempt.View `json:"attempt"`
}

// ===== SERVICES =====

// PlayerService runs proctored quiz attempts for learners. Every attempt
// operation checks that the attempt belongs to learnerID.
type PlayerService interface {
	StartAttempt(ctx context.Context, learnerID string, req *StartAttemptRequest) (*attempt.View, error)
	Snapshot(ctx context.Context, learnerID, attemptID string) (*attempt.View, error)
	RecordSignal(ctx context.Context, learnerID, attemptID string, sig proctoring.Signal) (*SignalResponse, error)
	Answer(ctx context.Context, learnerID, attemptID string, req *AnswerRequest) (*attempt.View, error)
	Next(ctx context.Context, learnerID, attemptID string) (*NextResponse, error)
	Navigate(ctx context.Context, learnerID, attemptID string, req *NavigateRequest) (*attempt.View, error)
	Submit(ctx context.Context, learnerID, attemptID string) (*attempt.Result, error)
	Retry(ctx context.Context, learnerID, attemptID string, req *RetryRequest) (*attempt.View, error)
	Close(ctx context.Context, learnerID, attemptID string) error

	// Watch streams the session's events to fn until the returned function
	// is called.
	Watch(ctx context.Context, learnerID, attemptID string, fn func(attempt.Event)) (func(), error)
	Shutdown()
}

type ProgressionService interface {
	CanEnterModule(ctx context.Context, learnerID, trainingID string, moduleIndex int) (*progression.Decision, error)
	CanEnterFinalExam(ctx context.Context, learnerID, trainingID string) (*progression.Decision, error)
	Outcomes(ctx context.Context, learnerID, trainingID string) ([]models.ModuleOutcome, error)
	GetCertificate(ctx context.Context, learnerID, learnerName, trainingID string) (*models.Certificate, error)
}

type ReportService interface {
	AttemptReport(ctx context.Context, learnerID, attemptID string) ([]byte, error)
}

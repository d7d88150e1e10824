package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// EventType represents the attempt lifecycle events this service publishes
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptViolation EventType = "attempt.violation"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptRejected  EventType = "attempt.rejected"
	EventAttemptRetried   EventType = "attempt.retried"

	EventCertificateIssued EventType = "certificate.issued"
)

const eventSource = "training-assessment-service"

// AttemptEvent is the envelope for every published event
type AttemptEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`
	Data      interface{}    `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Event payloads

type AttemptStartedData struct {
	AttemptID     string    `json:"attempt_id"`
	AttemptNumber int       `json:"attempt_number"`
	LearnerID     string    `json:"learner_id"`
	TrainingID    string    `json:"training_id"`
	QuizID        string    `json:"quiz_id"`
	ModuleID      string    `json:"module_id,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	TimeLimit     *int      `json:"time_limit,omitempty"` // minutes
}

type AttemptViolationData struct {
	AttemptID     string               `json:"attempt_id"`
	LearnerID     string               `json:"learner_id"`
	QuizID        string               `json:"quiz_id"`
	QuestionID    string               `json:"question_id"`
	QuestionIndex int                  `json:"question_index"`
	Kind          models.ViolationKind `json:"kind"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type AttemptSubmittedData struct {
	AttemptID      string           `json:"attempt_id"`
	LearnerID      string           `json:"learner_id"`
	TrainingID     string           `json:"training_id"`
	QuizID         string           `json:"quiz_id"`
	ModuleID       string           `json:"module_id,omitempty"`
	Score          int              `json:"score"`
	ClientScore    int              `json:"client_score"`
	Passed         bool             `json:"passed"`
	ViolationCount int              `json:"violation_count"`
	EndReason      models.EndReason `json:"end_reason"`
}

type AttemptRejectedData struct {
	AttemptID string `json:"attempt_id"`
	LearnerID string `json:"learner_id"`
	QuizID    string `json:"quiz_id"`
	Message   string `json:"message"`
}

type AttemptRetriedData struct {
	AttemptID         string `json:"attempt_id"`
	PreviousAttemptID string `json:"previous_attempt_id"`
	LearnerID         string `json:"learner_id"`
	QuizID            string `json:"quiz_id"`
	ModuleID          string `json:"module_id,omitempty"`
}

type CertificateIssuedData struct {
	LearnerID   string             `json:"learner_id"`
	Certificate models.Certificate `json:"certificate"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}

func NewAttemptStartedEvent(data AttemptStartedData) *AttemptEvent {
	return newEvent(EventAttemptStarted, data)
}

func NewAttemptViolationEvent(data AttemptViolationData) *AttemptEvent {
	return newEvent(EventAttemptViolation, data)
}

func NewAttemptSubmittedEvent(data AttemptSubmittedData) *AttemptEvent {
	return newEvent(EventAttemptSubmitted, data)
}

func NewAttemptRejectedEvent(data AttemptRejectedData) *AttemptEvent {
	return newEvent(EventAttemptRejected, data)
}

func NewAttemptRetriedEvent(data AttemptRetriedData) *AttemptEvent {
	return newEvent(EventAttemptRetried, data)
}

func NewCertificateIssuedEvent(learnerID string, cert models.Certificate) *AttemptEvent {
	return newEvent(EventCertificateIssued, CertificateIssuedData{LearnerID: learnerID, Certificate: cert})
}

func GenerateEventID() string {
	return uuid.New().String()
}

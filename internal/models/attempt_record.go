package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitting AttemptStatus = "submitting"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptRejected   AttemptStatus = "rejected"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

type EndReason string

const (
	EndReasonLearner   EndReason = "learner_submit"
	EndReasonViolation EndReason = "violation_auto_submit"
	EndReasonTimeout   EndReason = "time_out"
)

// AttemptRecord is the persisted audit trail of one quiz attempt.
type AttemptRecord struct {
	ID            string        `json:"id" gorm:"primaryKey;size:36"`
	LearnerID     string        `json:"learner_id" gorm:"not null;size:255;index:idx_attempt_learner_quiz"`
	TrainingID    string        `json:"training_id" gorm:"not null;size:255;index"`
	QuizID        string        `json:"quiz_id" gorm:"not null;size:255;index:idx_attempt_learner_quiz"`
	ModuleID      string        `json:"module_id" gorm:"size:255"`
	FinalExam     bool          `json:"final_exam" gorm:"not null;default:false"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1"`
	Status        AttemptStatus `json:"status" gorm:"not null;size:20;index"`

	StartedAt time.Time  `json:"started_at" gorm:"not null"`
	EndedAt   *time.Time `json:"ended_at"`
	EndReason EndReason  `json:"end_reason,omitempty" gorm:"size:32"`

	// Scoring
	ClientScore *int  `json:"client_score"`
	Score       *int  `json:"score"`
	Passed      *bool `json:"passed"`

	// Integrity
	ViolationCount  int            `json:"violation_count" gorm:"default:0"`
	SecurityMessage *string        `json:"security_message,omitempty" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	Verdict         datatypes.JSON `json:"verdict,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}

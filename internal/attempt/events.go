package attempt

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
)

type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventQuestionStarted  EventType = "question.started"
	EventAnswerRecorded   EventType = "answer.recorded"
	EventSignalObserved   EventType = "signal.observed"
	EventViolation        EventType = "attempt.violation"
	EventQuestionAdvanced EventType = "question.advanced"
	EventSubmitting       EventType = "attempt.submitting"
	EventSubmitted        EventType = "attempt.submitted"
	EventSubmissionFailed EventType = "attempt.submission_failed"
	EventRejected         EventType = "attempt.rejected"
	EventRetried          EventType = "attempt.retried"
	EventClosed           EventType = "attempt.closed"
)

// Event is emitted by a Session after the state change it describes has
// been applied.
type Event struct {
	Type              EventType               `json:"type"`
	AttemptID         string                  `json:"attempt_id"`
	PreviousAttemptID string                  `json:"previous_attempt_id,omitempty"`
	QuestionIndex     int                     `json:"question_index"`
	QuestionID        string                  `json:"question_id,omitempty"`
	Kind              models.ViolationKind    `json:"kind,omitempty"`
	Observation       *proctoring.Observation `json:"observation,omitempty"`
	Result            *Result                 `json:"result,omitempty"`
	Message           string                  `json:"message,omitempty"`
	At                time.Time               `json:"at"`
}

// Result is the reconciled outcome of a submission.
type Result struct {
	AttemptID         string           `json:"attempt_id"`
	ClientScore       Score            `json:"client_score"`
	Score             int              `json:"score"`
	Passed            bool             `json:"passed"`
	PassingScore      int              `json:"passing_score"`
	ServerScored      bool             `json:"server_scored"`
	PenaltyApplied    bool             `json:"penalty_applied,omitempty"`
	PenaltyPercentage float64          `json:"penalty_percentage,omitempty"`
	EndReason         models.EndReason `json:"end_reason"`
}

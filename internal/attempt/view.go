package attempt

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
)

// View is what the learner's player renders.
type View struct {
	AttemptID         string               `json:"attempt_id"`
	AttemptNumber     int                  `json:"attempt_number"`
	QuizID            string               `json:"quiz_id"`
	Status            models.AttemptStatus `json:"status"`
	CurrentIndex      int                  `json:"current_index"`
	TotalQuestions    int                  `json:"total_questions"`
	Question          *models.QuestionView `json:"question,omitempty"`
	CurrentAnswer     *models.Answer       `json:"current_answer,omitempty"`
	CurrentLocked     bool                 `json:"current_locked"`
	LockedIndices     []int                `json:"locked_indices"`
	ViolationCount    int                  `json:"violation_count"`
	ElapsedSeconds    int                  `json:"elapsed_seconds"`
	RemainingSeconds  *int                 `json:"remaining_seconds,omitempty"`
	SubmissionPending bool                 `json:"submission_pending"`
	ClientScore       *int                 `json:"client_score,omitempty"`
	Score             *int                 `json:"score,omitempty"`
	Passed            *bool                `json:"passed,omitempty"`
	StartedAt         time.Time            `json:"started_at"`
}

// RecordSummary is the audit view of one question slot.
type RecordSummary struct {
	Index      int                  `json:"index"`
	QuestionID string               `json:"question_id"`
	State      QuestionState        `json:"state"`
	Answered   bool                 `json:"answered"`
	Correct    bool                 `json:"correct"`
	Locked     bool                 `json:"locked"`
	Violation  models.ViolationKind `json:"violation,omitempty"`
	ResponseMs *int64               `json:"response_ms,omitempty"`
	Suspicious bool                 `json:"suspicious"`
}

// Export is a consistent copy of everything the session knows about its
// current attempt, used for persistence and reporting.
type Export struct {
	AttemptID    string                    `json:"attempt_id"`
	Number       int                       `json:"number"`
	QuizID       string                    `json:"quiz_id"`
	Status       models.AttemptStatus      `json:"status"`
	StartedAt    time.Time                 `json:"started_at"`
	EndedAt      time.Time                 `json:"ended_at"`
	EndReason    models.EndReason          `json:"end_reason,omitempty"`
	Records      []RecordSummary           `json:"records"`
	Violations   []ViolationEntry          `json:"violations"`
	Locked       []int                     `json:"locked"`
	Observations []proctoring.Observation  `json:"observations"`
	ClientScore  *Score                    `json:"client_score,omitempty"`
	Score        *int                      `json:"score,omitempty"`
	Passed       *bool                     `json:"passed,omitempty"`
	Payload      *models.SubmissionPayload `json:"payload,omitempty"`
	Verdict      *models.SubmissionVerdict `json:"verdict,omitempty"`
}

func (s *Session) Snapshot() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.attempt
	if a == nil {
		return nil, ErrAttemptNotStarted
	}
	now := s.clock.Now()
	rec := a.current()

	v := &View{
		AttemptID:         a.ID,
		AttemptNumber:     a.Number,
		QuizID:            a.QuizID,
		Status:            a.Status,
		CurrentIndex:      a.Current,
		TotalQuestions:    len(a.records),
		CurrentLocked:     rec.Locked,
		LockedIndices:     a.LockedIndices(),
		ViolationCount:    len(a.violations),
		ElapsedSeconds:    int(rec.Elapsed(now).Seconds()),
		SubmissionPending: a.pendingSubmission(),
		StartedAt:         a.StartedAt,
		Score:             a.submittedScore,
		Passed:            a.passed,
	}
	if a.Status == models.AttemptInProgress && !v.SubmissionPending {
		q := s.quiz.Questions[a.Current].View(a.Current)
		v.Question = &q
		if rec.Answered() {
			answer := rec.Answer
			v.CurrentAnswer = &answer
		}
	}
	if a.clientScore != nil {
		percent := a.clientScore.Percent
		v.ClientScore = &percent
	}
	if limit := s.quiz.TimeLimit(); limit > 0 && a.Status == models.AttemptInProgress {
		remaining := int((limit - now.Sub(a.StartedAt)).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		v.RemainingSeconds = &remaining
	}
	return v, nil
}

func (s *Session) Export() (*Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.attempt
	if a == nil {
		return nil, ErrAttemptNotStarted
	}

	records := make([]RecordSummary, len(a.records))
	for i, r := range a.records {
		records[i] = RecordSummary{
			Index:      i,
			QuestionID: r.QuestionID,
			State:      r.State,
			Answered:   r.Answered(),
			Correct:    r.Answered() && IsCorrect(s.quiz.Questions[i], r.Answer),
			Locked:     r.Locked,
			Violation:  r.Violation,
			Suspicious: r.Suspicious(),
		}
		if ms, ok := r.ResponseMs(); ok {
			records[i].ResponseMs = &ms
		}
	}

	return &Export{
		AttemptID:    a.ID,
		Number:       a.Number,
		QuizID:       a.QuizID,
		Status:       a.Status,
		StartedAt:    a.StartedAt,
		EndedAt:      a.EndedAt,
		EndReason:    a.EndReason,
		Records:      records,
		Violations:   a.Violations(),
		Locked:       a.LockedIndices(),
		Observations: s.monitor.Observations(),
		ClientScore:  a.clientScore,
		Score:        a.submittedScore,
		Passed:       a.passed,
		Payload:      a.payload,
		Verdict:      a.verdict,
	}, nil
}

// AttemptID returns the id of the current attempt, or "" before Start.
func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return ""
	}
	return s.attempt.ID
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

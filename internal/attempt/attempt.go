package attempt

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// ViolationEntry is one effective violation in the attempt's log.
type ViolationEntry struct {
	QuestionIndex int                  `json:"question_index"`
	QuestionID    string               `json:"question_id"`
	Kind          models.ViolationKind `json:"kind"`
	At            time.Time            `json:"at"`
}

// Attempt is one pass through a quiz. Records are addressed by question
// index; the locked set and the violation log only ever grow. Only the
// owning Session mutates an Attempt.
type Attempt struct {
	ID        string
	Number    int
	QuizID    string
	StartedAt time.Time
	EndedAt   time.Time
	Status    models.AttemptStatus
	EndReason models.EndReason
	Current   int

	records    []QuestionRecord
	locked     []int
	violations []ViolationEntry
	epoch      uint64

	clientScore    *Score
	submittedScore *int
	passed         *bool
	payload        *models.SubmissionPayload
	verdict        *models.SubmissionVerdict
}

func newAttempt(id string, number int, quiz *models.Quiz, now time.Time) *Attempt {
	a := &Attempt{
		ID:        id,
		Number:    number,
		QuizID:    quiz.ID,
		StartedAt: now,
		Status:    models.AttemptInProgress,
		records:   make([]QuestionRecord, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		a.records[i] = QuestionRecord{QuestionID: q.ID, Index: i, State: StateUnseen}
	}
	return a
}

func (a *Attempt) record(i int) *QuestionRecord {
	if i < 0 || i >= len(a.records) {
		return nil
	}
	return &a.records[i]
}

func (a *Attempt) current() *QuestionRecord {
	return &a.records[a.Current]
}

func (a *Attempt) last() bool {
	return a.Current == len(a.records)-1
}

// lock adds i to the locked set. Re-locking is a no-op.
func (a *Attempt) lock(i int) {
	for _, l := range a.locked {
		if l == i {
			return
		}
	}
	a.locked = append(a.locked, i)
}

func (a *Attempt) IsLocked(i int) bool {
	r := a.record(i)
	return r != nil && r.Locked
}

func (a *Attempt) LockedIndices() []int {
	out := make([]int, len(a.locked))
	copy(out, a.locked)
	return out
}

func (a *Attempt) Violations() []ViolationEntry {
	out := make([]ViolationEntry, len(a.violations))
	copy(out, a.violations)
	return out
}

func (a *Attempt) Records() []QuestionRecord {
	out := make([]QuestionRecord, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Attempt) answers() map[string]models.Answer {
	answers := make(map[string]models.Answer)
	for _, r := range a.records {
		if r.Answered() {
			answers[r.QuestionID] = r.Answer
		}
	}
	return answers
}

func (a *Attempt) SubmittedScore() (int, bool) {
	if a.submittedScore == nil {
		return 0, false
	}
	return *a.submittedScore, true
}

func (a *Attempt) pendingSubmission() bool {
	return a.Status == models.AttemptInProgress && a.payload != nil
}

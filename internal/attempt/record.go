package attempt

import (
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

type QuestionState string

const (
	StateUnseen   QuestionState = "unseen"
	StateCurrent  QuestionState = "current"
	StateAnswered QuestionState = "answered"
	StateLocked   QuestionState = "locked"
	StateAdvanced QuestionState = "advanced"
)

const (
	MinPlausibleResponse = 2 * time.Second
	MaxPlausibleResponse = 300 * time.Second
)

// IsSuspiciousLatency flags response times that are implausibly short or long.
// The flag is informational only.
func IsSuspiciousLatency(ms int64) bool {
	return ms < MinPlausibleResponse.Milliseconds() || ms > MaxPlausibleResponse.Milliseconds()
}

// QuestionClock measures how long a question stayed current.
type QuestionClock struct {
	startedAt  time.Time
	responseMs *int64
	forced     bool
}

func (c *QuestionClock) Start(now time.Time) {
	c.startedAt = now
	c.responseMs = nil
	c.forced = false
}

func (c *QuestionClock) StartedAt() time.Time {
	return c.startedAt
}

func (c *QuestionClock) Elapsed(now time.Time) time.Duration {
	if c.startedAt.IsZero() {
		return 0
	}
	if c.responseMs != nil {
		return time.Duration(*c.responseMs) * time.Millisecond
	}
	return now.Sub(c.startedAt)
}

// Stop freezes the response time. A forced stop records 0 ms. Only the first
// stop counts.
func (c *QuestionClock) Stop(now time.Time, forced bool) int64 {
	if c.responseMs != nil {
		return *c.responseMs
	}
	var ms int64
	if !forced {
		ms = now.Sub(c.startedAt).Milliseconds()
		if ms < 0 {
			ms = 0
		}
	}
	c.responseMs = &ms
	c.forced = forced
	return ms
}

func (c *QuestionClock) ResponseMs() (int64, bool) {
	if c.responseMs == nil {
		return 0, false
	}
	return *c.responseMs, true
}

// Suspicious reports a stopped, unforced latency outside the plausible range.
func (c *QuestionClock) Suspicious() bool {
	if c.responseMs == nil || c.forced {
		return false
	}
	return IsSuspiciousLatency(*c.responseMs)
}

// QuestionRecord is the per-question slot of an attempt.
type QuestionRecord struct {
	QuestionClock

	QuestionID string
	Index      int
	State      QuestionState
	Answer     models.Answer
	Locked     bool
	Violation  models.ViolationKind
}

func (r *QuestionRecord) enter(now time.Time) {
	r.State = StateCurrent
	r.Start(now)
}

func (r *QuestionRecord) answer(value models.Answer) {
	r.Answer = value
	r.State = StateAnswered
}

func (r *QuestionRecord) lockForViolation(kind models.ViolationKind) {
	r.Violation = kind
	r.Locked = true
	r.State = StateLocked
}

func (r *QuestionRecord) leave(now time.Time) int64 {
	ms := r.Stop(now, r.Violation != "")
	r.Locked = true
	r.State = StateAdvanced
	return ms
}

func (r *QuestionRecord) Answered() bool {
	return !r.Answer.IsZero()
}

// Package attempt runs a single learner's pass through a quiz: one question
// at a time, irreversible locking on violations, scoring and submission.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/training-assessment-service/internal/clock"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
)

const (
	DefaultAdvanceDelay  = 2 * time.Second
	DefaultSubmitTimeout = 15 * time.Second
)

// Submitter delivers a frozen payload to the authoritative grading server.
type Submitter interface {
	Submit(ctx context.Context, quiz *models.Quiz, payload *models.SubmissionPayload) (*models.SubmissionVerdict, error)
}

type Option func(*Session)

func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithSubmitter(sub Submitter) Option {
	return func(s *Session) { s.submitter = sub }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithKeyPolicy(p proctoring.KeyPolicy) Option {
	return func(s *Session) { s.keyPolicy = &p }
}

func WithAdvanceDelay(d time.Duration) Option {
	return func(s *Session) { s.advanceDelay = d }
}

func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) { s.submitTimeout = d }
}

func WithEnvironment(env Environment) Option {
	return func(s *Session) { s.env = env }
}

// WithPriorAttempts counts attempts made before this session toward the
// quiz's attempt limit.
func WithPriorAttempts(n int) Option {
	return func(s *Session) { s.priorAttempts = n }
}

// Session is the state machine for a learner's attempts at one quiz. All
// transitions are serialised on one mutex; timers and network delivery never
// hold it.
type Session struct {
	mu sync.Mutex

	quiz          *models.Quiz
	clock         clock.Clock
	submitter     Submitter
	logger        *slog.Logger
	keyPolicy     *proctoring.KeyPolicy
	monitor       *proctoring.Monitor
	unwatch       func()
	env           Environment
	advanceDelay  time.Duration
	submitTimeout time.Duration

	attempt       *Attempt
	priorAttempts int
	started       int
	generation    uint64
	closed        bool

	advanceTimer  clock.Timer
	deadlineTimer clock.Timer

	listeners map[int]func(Event)
	nextLisID int
	outbox    []Event
}

func NewSession(quiz *models.Quiz, opts ...Option) (*Session, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, ErrNoQuizAvailable
	}

	s := &Session{
		quiz:          quiz,
		clock:         clock.Real(),
		logger:        slog.Default(),
		advanceDelay:  DefaultAdvanceDelay,
		submitTimeout: DefaultSubmitTimeout,
		listeners:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("quiz_id", quiz.ID)

	policy := proctoring.DefaultKeyPolicy()
	if s.keyPolicy != nil {
		policy = *s.keyPolicy
	}
	s.monitor = proctoring.NewMonitor(s.clock, policy, s.logger)
	s.unwatch = s.monitor.Subscribe(s.onObservation)
	return s, nil
}

func (s *Session) Quiz() *models.Quiz {
	return s.quiz
}

// Subscribe registers fn for every session event and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextLisID
	s.nextLisID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// ===== LIFECYCLE =====

// Start opens the first attempt, arms the monitor and makes question 0 current.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.closed {
		return ErrSessionClosed
	}
	if s.attempt != nil {
		return ErrAttemptAlreadyActive
	}
	return s.beginAttemptLocked("")
}

// Retry discards a submitted attempt and starts a fresh one with an empty
// locked set and violation log. Without force only a failed attempt may be
// retried; a rejected attempt never can.
func (s *Session) Retry(force bool) error {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.closed {
		return ErrSessionClosed
	}
	a := s.attempt
	if a == nil {
		return ErrAttemptNotStarted
	}
	if a.Status != models.AttemptSubmitted {
		return fmt.Errorf("%w: attempt is %s", ErrRetryNotAllowed, a.Status)
	}
	if a.passed != nil && *a.passed && !force {
		return fmt.Errorf("%w: attempt already passed", ErrRetryNotAllowed)
	}

	return s.beginAttemptLocked(a.ID)
}

// Close tears the session down. Pending timers are cancelled and an
// unfinished attempt is marked abandoned.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.unlockAndFlush()

	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.cancelTimersLocked()
	s.monitor.Disarm()
	s.unwatch()

	if a := s.attempt; a != nil {
		if a.Status == models.AttemptInProgress || a.Status == models.AttemptSubmitting {
			a.Status = models.AttemptAbandoned
			a.EndedAt = s.clock.Now()
		}
		s.emit(Event{Type: EventClosed, AttemptID: a.ID, QuestionIndex: a.Current})
	}
}

func (s *Session) beginAttemptLocked(previousID string) error {
	if limit := s.quiz.MaxAttempts; limit > 0 && s.priorAttempts+s.started >= limit {
		return ErrAttemptLimitExceeded
	}

	s.cancelTimersLocked()
	s.generation++
	s.started++

	now := s.clock.Now()
	a := newAttempt(uuid.New().String(), s.priorAttempts+s.started, s.quiz, now)
	a.epoch = s.monitor.Arm(0)
	a.records[0].enter(now)
	s.attempt = a

	if limit := s.quiz.TimeLimit(); limit > 0 {
		s.deadlineTimer = s.scheduleLocked(limit, s.onDeadline)
	}

	if previousID != "" {
		s.logger.Info("Attempt retried", "attempt_id", a.ID, "previous_attempt_id", previousID, "attempt_number", a.Number)
		s.emit(Event{Type: EventRetried, AttemptID: a.ID, PreviousAttemptID: previousID})
	} else {
		s.logger.Info("Attempt started", "attempt_id", a.ID, "attempt_number", a.Number)
		s.emit(Event{Type: EventAttemptStarted, AttemptID: a.ID})
	}
	s.emit(Event{Type: EventQuestionStarted, AttemptID: a.ID, QuestionIndex: 0, QuestionID: a.records[0].QuestionID})
	return nil
}

// ===== ANSWERING & NAVIGATION =====

// Answer records or revises the answer to the current question.
func (s *Session) Answer(index int, value models.Answer) error {
	s.mu.Lock()
	defer s.unlockAndFlush()

	a, err := s.activeLocked()
	if err != nil {
		return err
	}
	rec := a.record(index)
	if rec == nil {
		return ErrInvalidQuestion
	}
	if rec.Locked {
		return ErrQuestionLocked
	}
	if index != a.Current {
		return ErrNotCurrentQuestion
	}
	if err := validateAnswer(s.quiz.Questions[index], value); err != nil {
		return err
	}

	rec.answer(value)
	s.emit(Event{Type: EventAnswerRecorded, AttemptID: a.ID, QuestionIndex: index, QuestionID: rec.QuestionID})
	return nil
}

// Step describes where a Next call left the attempt.
type Step struct {
	Current   int     `json:"current_index"`
	Submitted bool    `json:"submitted"`
	Result    *Result `json:"result,omitempty"`
}

// Next locks the current, answered question and moves forward. On the last
// question it submits the attempt.
func (s *Session) Next(ctx context.Context) (*Step, error) {
	s.mu.Lock()

	a, err := s.activeLocked()
	if err != nil {
		s.unlockAndFlush()
		return nil, err
	}
	rec := a.current()
	if rec.Locked {
		s.unlockAndFlush()
		return nil, ErrQuestionLocked
	}
	if !rec.Answered() {
		s.unlockAndFlush()
		return nil, ErrQuestionUnanswered
	}

	now := s.clock.Now()
	s.leaveLocked(a, rec, now)

	if !a.last() {
		s.moveLocked(a, a.Current+1, now)
		step := &Step{Current: a.Current}
		s.unlockAndFlush()
		return step, nil
	}

	current := a.Current
	payload := s.freezeLocked(a, models.EndReasonLearner, now)
	gen := s.generation
	s.unlockAndFlush()

	res, err := s.deliver(ctx, gen, payload)
	return &Step{Current: current, Submitted: true, Result: res}, err
}

// GoTo navigates to index. Moving into a locked question fails with
// ErrQuestionLocked and leaves the attempt untouched.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.unlockAndFlush()

	a, err := s.activeLocked()
	if err != nil {
		return err
	}
	target := a.record(index)
	if target == nil {
		return ErrInvalidQuestion
	}
	if index == a.Current {
		return nil
	}
	if target.Locked {
		return ErrQuestionLocked
	}
	if index > a.Current {
		return ErrForwardNavigation
	}
	if a.current().Locked {
		return ErrQuestionLocked
	}

	// the question being left stays unlocked and keeps its answer
	if left := a.current(); left.Answered() {
		left.State = StateAnswered
	} else {
		left.State = StateUnseen
	}
	s.moveLocked(a, index, s.clock.Now())
	return nil
}

// Back is GoTo(current-1).
func (s *Session) Back() error {
	s.mu.Lock()
	a, err := s.activeLocked()
	var index int
	if err == nil {
		index = a.Current - 1
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.GoTo(index)
}

// ===== PROCTORING =====

// RecordSignal feeds a raw environment signal to the monitor. It reports
// whether the signal became the effective violation for the current question.
func (s *Session) RecordSignal(sig proctoring.Signal) (proctoring.Observation, bool) {
	return s.monitor.RecordSignal(sig)
}

// RecordViolation feeds an already classified violation kind to the monitor.
func (s *Session) RecordViolation(kind models.ViolationKind) (proctoring.Observation, bool) {
	return s.monitor.Record(kind)
}

func (s *Session) onObservation(obs proctoring.Observation) {
	s.mu.Lock()
	defer s.unlockAndFlush()

	a := s.attempt
	if s.closed || a == nil || obs.Epoch != a.epoch {
		return
	}
	applies := obs.Effective && a.Status == models.AttemptInProgress && a.payload == nil &&
		obs.QuestionIndex == a.Current && !a.current().Locked
	if obs.Effective && !applies {
		// the question moved on before the observation landed
		s.monitor.Demote(obs.Epoch, obs.Seq)
		obs.Effective = false
	}
	o := obs
	s.emit(Event{
		Type:          EventSignalObserved,
		AttemptID:     a.ID,
		QuestionIndex: obs.QuestionIndex,
		QuestionID:    a.records[obs.QuestionIndex].QuestionID,
		Kind:          obs.Kind,
		Observation:   &o,
		At:            obs.At,
	})

	if !applies {
		return
	}
	rec := a.current()

	rec.lockForViolation(obs.Kind)
	a.lock(rec.Index)
	a.violations = append(a.violations, ViolationEntry{
		QuestionIndex: rec.Index,
		QuestionID:    rec.QuestionID,
		Kind:          obs.Kind,
		At:            obs.At,
	})
	s.emit(Event{Type: EventViolation, AttemptID: a.ID, QuestionIndex: rec.Index, QuestionID: rec.QuestionID, Kind: obs.Kind, At: obs.At})

	index := rec.Index
	s.advanceTimer = s.scheduleLocked(s.advanceDelay, func(gen uint64) {
		s.onAdvanceDue(gen, index)
	})
}

func (s *Session) onAdvanceDue(gen uint64, index int) {
	s.mu.Lock()

	a := s.attempt
	if gen != s.generation || s.closed || a == nil || a.Status != models.AttemptInProgress ||
		a.payload != nil || a.Current != index {
		s.unlockAndFlush()
		return
	}
	s.advanceTimer = nil

	now := s.clock.Now()
	s.leaveLocked(a, a.current(), now)

	if !a.last() {
		s.moveLocked(a, index+1, now)
		s.unlockAndFlush()
		return
	}

	payload := s.freezeLocked(a, models.EndReasonViolation, now)
	s.unlockAndFlush()
	s.deliverDetached(gen, payload)
}

func (s *Session) onDeadline(gen uint64) {
	s.mu.Lock()

	a := s.attempt
	if gen != s.generation || s.closed || a == nil || a.Status != models.AttemptInProgress || a.payload != nil {
		s.unlockAndFlush()
		return
	}
	s.deadlineTimer = nil
	s.logger.Info("Attempt time limit reached, submitting", "attempt_id", a.ID)

	payload := s.freezeLocked(a, models.EndReasonTimeout, s.clock.Now())
	s.unlockAndFlush()
	s.deliverDetached(gen, payload)
}

// ===== SUBMISSION =====

// Submit scores the attempt and delivers it. After a transport failure the
// same frozen payload is delivered again.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()

	if s.closed {
		s.unlockAndFlush()
		return nil, ErrSessionClosed
	}
	a := s.attempt
	if a == nil {
		s.unlockAndFlush()
		return nil, ErrAttemptNotStarted
	}

	var payload *models.SubmissionPayload
	switch {
	case a.pendingSubmission():
		payload = a.payload
		a.Status = models.AttemptSubmitting
		s.emit(Event{Type: EventSubmitting, AttemptID: a.ID, QuestionIndex: a.Current, Message: "resubmitting"})
	case a.Status == models.AttemptInProgress:
		payload = s.freezeLocked(a, models.EndReasonLearner, s.clock.Now())
	default:
		s.unlockAndFlush()
		return nil, ErrAttemptNotActive
	}
	gen := s.generation
	s.unlockAndFlush()

	return s.deliver(ctx, gen, payload)
}

// freezeLocked stops the attempt from changing, scores it and builds the
// payload that every delivery of this attempt will send.
func (s *Session) freezeLocked(a *Attempt, reason models.EndReason, now time.Time) *models.SubmissionPayload {
	s.cancelTimersLocked()
	s.monitor.Disarm()

	if rec := a.current(); rec.State != StateAdvanced {
		rec.Stop(now, rec.Violation != "")
	}

	score := ScoreAnswers(s.quiz.Questions, a.answers())
	a.clientScore = &score
	a.EndedAt = now
	a.EndReason = reason
	a.payload = buildPayload(a, s.monitor.Tally(), s.env, now)
	a.Status = models.AttemptSubmitting

	s.logger.Info("Attempt submitting",
		"attempt_id", a.ID,
		"reason", reason,
		"client_score", score.Percent,
		"violations", len(a.violations))
	s.emit(Event{Type: EventSubmitting, AttemptID: a.ID, QuestionIndex: a.Current, Message: string(reason)})
	return a.payload
}

func (s *Session) deliverDetached(gen uint64, payload *models.SubmissionPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	if _, err := s.deliver(ctx, gen, payload); err != nil {
		s.logger.Warn("Automatic submission did not complete", "error", err)
	}
}

func (s *Session) deliver(ctx context.Context, gen uint64, payload *models.SubmissionPayload) (*Result, error) {
	var (
		verdict *models.SubmissionVerdict
		err     error
	)
	if s.submitter != nil {
		verdict, err = s.submitter.Submit(ctx, s.quiz, payload)
	}

	s.mu.Lock()
	defer s.unlockAndFlush()

	a := s.attempt
	if gen != s.generation || a == nil || a.Status != models.AttemptSubmitting {
		return nil, ErrSessionClosed
	}

	if err != nil {
		a.Status = models.AttemptInProgress
		s.logger.Error("Failed to deliver submission", "attempt_id", a.ID, "error", err)
		s.emit(Event{Type: EventSubmissionFailed, AttemptID: a.ID, QuestionIndex: a.Current, Message: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrSubmissionTransport, err)
	}

	a.verdict = verdict
	if verdict != nil && verdict.SecurityViolation {
		a.Status = models.AttemptRejected
		s.logger.Warn("Attempt rejected by integrity check", "attempt_id", a.ID, "message", verdict.SecurityMessage)
		s.emit(Event{Type: EventRejected, AttemptID: a.ID, QuestionIndex: a.Current, Message: verdict.SecurityMessage})
		return nil, &RejectionError{Message: verdict.SecurityMessage}
	}

	res := s.reconcileLocked(a, verdict)
	a.submittedScore = &res.Score
	a.passed = &res.Passed
	a.Status = models.AttemptSubmitted

	s.logger.Info("Attempt submitted",
		"attempt_id", a.ID,
		"score", res.Score,
		"passed", res.Passed,
		"server_scored", res.ServerScored)
	s.emit(Event{Type: EventSubmitted, AttemptID: a.ID, QuestionIndex: a.Current, Result: res})
	return res, nil
}

// reconcileLocked makes the grading server authoritative whenever it answered.
func (s *Session) reconcileLocked(a *Attempt, verdict *models.SubmissionVerdict) *Result {
	passing := s.quiz.EffectivePassingScore()
	res := &Result{
		AttemptID:    a.ID,
		ClientScore:  *a.clientScore,
		Score:        a.clientScore.Percent,
		PassingScore: passing,
		EndReason:    a.EndReason,
	}

	if verdict != nil {
		res.Score = verdict.Score
		res.ServerScored = true
		res.PenaltyApplied = verdict.PenaltyApplied
		res.PenaltyPercentage = verdict.PenaltyPercentage
		if res.Score != res.ClientScore.Percent {
			s.logger.Info("Grading server overrode client score",
				"attempt_id", a.ID,
				"client_score", res.ClientScore.Percent,
				"server_score", res.Score)
		}
	}

	res.Passed = Passed(res.Score, passing)
	if verdict != nil && verdict.Passed != nil {
		res.Passed = *verdict.Passed
	}
	return res
}

// ===== HELPERS =====

func (s *Session) activeLocked() (*Attempt, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	a := s.attempt
	if a == nil {
		return nil, ErrAttemptNotStarted
	}
	if a.pendingSubmission() {
		return nil, ErrSubmissionPending
	}
	if a.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}
	return a, nil
}

func (s *Session) leaveLocked(a *Attempt, rec *QuestionRecord, now time.Time) {
	ms := rec.leave(now)
	a.lock(rec.Index)
	if rec.Suspicious() {
		s.logger.Info("Suspicious response time",
			"attempt_id", a.ID,
			"question_index", rec.Index,
			"response_ms", ms)
	}
	s.emit(Event{Type: EventQuestionAdvanced, AttemptID: a.ID, QuestionIndex: rec.Index, QuestionID: rec.QuestionID})
}

func (s *Session) moveLocked(a *Attempt, index int, now time.Time) {
	a.Current = index
	a.records[index].enter(now)
	s.monitor.Focus(index)
	s.emit(Event{Type: EventQuestionStarted, AttemptID: a.ID, QuestionIndex: index, QuestionID: a.records[index].QuestionID})
}

func (s *Session) scheduleLocked(d time.Duration, fn func(gen uint64)) clock.Timer {
	gen := s.generation
	return s.clock.AfterFunc(d, func() { fn(gen) })
}

func (s *Session) cancelTimersLocked() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
}

func (s *Session) emit(e Event) {
	if e.At.IsZero() {
		e.At = s.clock.Now()
	}
	s.outbox = append(s.outbox, e)
}

// unlockAndFlush releases the session and only then notifies listeners, so
// listeners may call back into the session.
func (s *Session) unlockAndFlush() {
	events := s.outbox
	s.outbox = nil
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, e := range events {
		for _, fn := range listeners {
			fn(e)
		}
	}
}

func validateAnswer(q models.Question, value models.Answer) error {
	if !value.Fits(q.Kind) {
		return fmt.Errorf("%w: %s expects a different value", ErrInvalidAnswer, q.Kind)
	}
	if idx, ok := value.Index(); ok && (idx < 0 || idx >= len(q.Options)) {
		return fmt.Errorf("%w: option %d out of range", ErrInvalidAnswer, idx)
	}
	return nil
}

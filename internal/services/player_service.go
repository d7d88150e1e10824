package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/clock"
	"github.com/SAP-F-2025/training-assessment-service/internal/events"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/progression"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/training-assessment-service/internal/validator"
)

const persistTimeout = 10 * time.Second

type PlayerConfig struct {
	AdvanceDelay   time.Duration
	SubmitTimeout  time.Duration
	QuizlessPolicy progression.QuizlessPolicy
	KeyPolicy      *proctoring.KeyPolicy
	Clock          clock.Clock
}

// liveSession is a running attempt session and the context it was started in.
type liveSession struct {
	learnerID   string
	training    *models.Training
	quiz        *models.Quiz
	scope       repositories.OutcomeScope
	session     *attempt.Session
	unsubscribe func()

	mu         sync.Mutex
	auditSaved map[string]bool
}

type playerService struct {
	repo        repositories.Repository
	definitions *Definitions
	submitter   attempt.Submitter
	publisher   events.EventPublisher
	tokens      *TokenIssuer
	validator   *validator.Validator
	config      PlayerConfig
	logger      *slog.Logger
	svcLogger   *ServiceLogger

	mu        sync.RWMutex
	byAttempt map[string]*liveSession
	byScope   map[repositories.OutcomeScope]*liveSession
}

// NewPlayerService wires the attempt engine to persistence and events. A nil
// submitter runs attempts offline with client-side scoring; a nil publisher
// disables events.
func NewPlayerService(
	repo repositories.Repository,
	definitions *Definitions,
	submitter attempt.Submitter,
	publisher events.EventPublisher,
	tokens *TokenIssuer,
	v *validator.Validator,
	cfg PlayerConfig,
	logger *slog.Logger,
) PlayerService {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = attempt.DefaultAdvanceDelay
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = attempt.DefaultSubmitTimeout
	}
	return &playerService{
		repo:        repo,
		definitions: definitions,
		submitter:   submitter,
		publisher:   publisher,
		tokens:      tokens,
		validator:   v,
		config:      cfg,
		logger:      logger,
		svcLogger:   NewServiceLogger(logger, "player"),
		byAttempt:   make(map[string]*liveSession),
		byScope:     make(map[repositories.OutcomeScope]*liveSession),
	}
}

// ===== LIFECYCLE =====

func (s *playerService) StartAttempt(ctx context.Context, learnerID string, req *StartAttemptRequest) (view *attempt.View, err error) {
	op := s.svcLogger.WithOperation(ctx, "start_attempt", learnerID)
	defer func() { op.LogResult(req.TrainingID, "training", err) }()

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.FinalExam && req.ModuleID != "" {
		return nil, NewBusinessRuleError("attempt_target", "choose either a module or the final exam", nil)
	}

	training, err := s.definitions.Training(ctx, req.TrainingID)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.repo.Outcomes().ListByTraining(ctx, nil, learnerID, training.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}

	quiz, err := s.resolveQuiz(ctx, training, req, outcomes)
	if err != nil {
		return nil, err
	}

	scope := repositories.ScopeOf(learnerID, quiz)
	if existing := s.lookupScope(scope); existing != nil {
		v, snapErr := existing.session.Snapshot()
		live := snapErr == nil && !existing.session.Closed()
		switch {
		case live && resumable(v.Status):
			s.logger.Info("Resuming live attempt", "attempt_id", v.AttemptID, "learner_id", learnerID)
			return v, nil
		case live && v.Status == models.AttemptSubmitted:
			// starting over a submitted attempt is a retry and follows its rules
			if err := existing.session.Retry(false); err != nil {
				return nil, err
			}
			return existing.session.Snapshot()
		case snapErr == nil && v.Status == models.AttemptRejected:
			return nil, rejectedRestart(v.AttemptID)
		}
		s.retire(existing)
	}

	prior, err := s.repo.Attempts().CountByLearnerAndQuiz(ctx, nil, learnerID, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	entered, err := s.repo.Outcomes().EnsureEntered(ctx, nil, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to record module entry: %w", err)
	}
	if err := s.checkRestart(ctx, learnerID, quiz.ID, scope, entered); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(uuid.New().String(), learnerID, training.ID, quiz.ID)
	if err != nil {
		return nil, err
	}

	opts := []attempt.Option{
		attempt.WithClock(s.config.Clock),
		attempt.WithLogger(s.logger.With("learner_id", learnerID)),
		attempt.WithAdvanceDelay(s.config.AdvanceDelay),
		attempt.WithSubmitTimeout(s.config.SubmitTimeout),
		attempt.WithEnvironment(attempt.Environment{UserAgent: req.UserAgent, SessionToken: token}),
		attempt.WithPriorAttempts(prior),
	}
	if s.submitter != nil {
		opts = append(opts, attempt.WithSubmitter(s.submitter))
	}
	if s.config.KeyPolicy != nil {
		opts = append(opts, attempt.WithKeyPolicy(*s.config.KeyPolicy))
	}

	session, err := attempt.NewSession(quiz, opts...)
	if err != nil {
		return nil, err
	}
	ls := &liveSession{
		learnerID:  learnerID,
		training:   training,
		quiz:       quiz,
		scope:      scope,
		session:    session,
		auditSaved: make(map[string]bool),
	}
	ls.unsubscribe = session.Subscribe(func(e attempt.Event) { s.onSessionEvent(ls, e) })

	if err := session.Start(); err != nil {
		ls.unsubscribe()
		session.Close()
		return nil, err
	}
	return session.Snapshot()
}

// resolveQuiz applies the module gate and loads the quiz the request targets.
func (s *playerService) resolveQuiz(ctx context.Context, training *models.Training, req *StartAttemptRequest, outcomes []models.ModuleOutcome) (*models.Quiz, error) {
	gate := progression.NewModuleGate(progression.ModulesFromTraining(training), s.config.QuizlessPolicy, s.logger)

	var (
		quiz *models.Quiz
		err  error
	)
	if req.FinalExam {
		if !training.HasFinalExam() {
			return nil, fmt.Errorf("%w: training has no final exam", attempt.ErrNoQuizAvailable)
		}
		if d := gate.EvaluateFinalExam(outcomes); !d.Allowed {
			return nil, moduleLocked(d)
		}
		quiz, err = s.definitions.FinalExam(ctx, training.ID)
	} else {
		index := training.ModuleIndex(req.ModuleID)
		if index < 0 {
			return nil, ErrModuleNotFound
		}
		if d := gate.Evaluate(index, outcomes); !d.Allowed {
			return nil, moduleLocked(d)
		}
		if !training.Modules[index].HasQuiz() {
			return nil, fmt.Errorf("%w: module %s has no quiz", attempt.ErrNoQuizAvailable, req.ModuleID)
		}
		quiz, err = s.definitions.ModuleQuiz(ctx, req.ModuleID)
	}
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			return nil, fmt.Errorf("%w: %w", attempt.ErrNoQuizAvailable, err)
		}
		return nil, err
	}

	bound := *quiz
	bound.TrainingID = training.ID
	bound.ModuleID = req.ModuleID
	if !req.FinalExam && bound.PassingScore == nil {
		bound.PassingScore = training.Modules[training.ModuleIndex(req.ModuleID)].PassingScore
	}
	return &bound, nil
}

// checkRestart applies the retry rules to a start with no live session, using
// the persisted history: a rejected attempt ends the quiz for the learner, a
// passed outcome is kept, and a failed one is rolled back.
func (s *playerService) checkRestart(ctx context.Context, learnerID, quizID string, scope repositories.OutcomeScope, entered *models.ModuleOutcome) error {
	latest, err := s.repo.Attempts().LatestByLearnerAndQuiz(ctx, nil, learnerID, quizID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return fmt.Errorf("failed to load previous attempt: %w", err)
	}
	if latest != nil && latest.Status == models.AttemptRejected {
		return rejectedRestart(latest.ID)
	}

	if entered == nil || !entered.Attempted {
		return nil
	}
	if entered.Passed {
		return fmt.Errorf("%w: quiz already passed", attempt.ErrRetryNotAllowed)
	}
	if err := s.repo.Outcomes().Reset(ctx, nil, scope); err != nil {
		return fmt.Errorf("failed to reset outcome: %w", err)
	}
	entered.Reset()
	return nil
}

func rejectedRestart(attemptID string) error {
	return fmt.Errorf("%w: attempt %s: %w", attempt.ErrRetryNotAllowed, attemptID, attempt.ErrSecurityRejected)
}

func moduleLocked(d progression.Decision) error {
	rule := NewBusinessRuleError("module_gate", string(d.Reason), map[string]interface{}{
		"module_index":       d.ModuleIndex,
		"blocking_index":     d.BlockingIndex,
		"blocking_module_id": d.BlockingID,
	})
	return fmt.Errorf("%w: %w", ErrModuleLocked, rule)
}

func resumable(status models.AttemptStatus) bool {
	return status == models.AttemptInProgress || status == models.AttemptSubmitting
}

func (s *playerService) Snapshot(ctx context.Context, learnerID, attemptID string) (*attempt.View, error) {
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	return ls.session.Snapshot()
}

func (s *playerService) Retry(ctx context.Context, learnerID, attemptID string, req *RetryRequest) (view *attempt.View, err error) {
	op := s.svcLogger.WithOperation(ctx, "retry_attempt", learnerID)
	defer func() { op.LogResult(attemptID, "attempt", err) }()

	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ls.session.Retry(req.Force); err != nil {
		return nil, err
	}
	return ls.session.Snapshot()
}

func (s *playerService) Close(ctx context.Context, learnerID, attemptID string) error {
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return err
	}
	s.retire(ls)
	return nil
}

func (s *playerService) Shutdown() {
	s.mu.Lock()
	live := make([]*liveSession, 0, len(s.byScope))
	for _, ls := range s.byScope {
		live = append(live, ls)
	}
	s.mu.Unlock()

	for _, ls := range live {
		s.retire(ls)
	}
	s.logger.Info("Player sessions closed", "count", len(live))
}

// ===== ANSWERING & NAVIGATION =====

func (s *playerService) Answer(ctx context.Context, learnerID, attemptID string, req *AnswerRequest) (*attempt.View, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Answer.IsZero() {
		return nil, ValidationErrors{{Field: "answer", Message: "is required", Rule: "required"}}
	}
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ls.session.Answer(*req.Index, req.Answer); err != nil {
		return nil, err
	}
	return ls.session.Snapshot()
}

func (s *playerService) Next(ctx context.Context, learnerID, attemptID string) (*NextResponse, error) {
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	step, err := ls.session.Next(ctx)
	if err != nil {
		return nil, err
	}
	view, err := ls.session.Snapshot()
	if err != nil {
		return nil, err
	}
	return &NextResponse{Step: step, View: view}, nil
}

func (s *playerService) Navigate(ctx context.Context, learnerID, attemptID string, req *NavigateRequest) (*attempt.View, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !req.Back && req.Index == nil {
		return nil, ValidationErrors{{Field: "index", Message: "is required", Rule: "required"}}
	}
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}

	if req.Back {
		err = ls.session.Back()
	} else {
		err = ls.session.GoTo(*req.Index)
	}
	if err != nil {
		return nil, err
	}
	return ls.session.Snapshot()
}

func (s *playerService) Submit(ctx context.Context, learnerID, attemptID string) (res *attempt.Result, err error) {
	op := s.svcLogger.WithOperation(ctx, "submit_attempt", learnerID)
	defer func() { op.LogResult(attemptID, "attempt", err) }()

	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	return ls.session.Submit(ctx)
}

// ===== PROCTORING =====

func (s *playerService) RecordSignal(ctx context.Context, learnerID, attemptID string, sig proctoring.Signal) (*SignalResponse, error) {
	if err := s.validator.ValidateStruct(sig); err != nil {
		return nil, err
	}
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}

	obs, effective := ls.session.RecordSignal(sig)
	view, err := ls.session.Snapshot()
	if err != nil {
		return nil, err
	}
	return &SignalResponse{Observation: obs, Effective: effective, View: view}, nil
}

func (s *playerService) Watch(ctx context.Context, learnerID, attemptID string, fn func(attempt.Event)) (func(), error) {
	ls, err := s.sessionFor(learnerID, attemptID)
	if err != nil {
		return nil, err
	}
	return ls.session.Subscribe(fn), nil
}

// ===== REGISTRY =====

func (s *playerService) sessionFor(learnerID, attemptID string) (*liveSession, error) {
	s.mu.RLock()
	ls := s.byAttempt[attemptID]
	s.mu.RUnlock()

	if ls == nil {
		return nil, ErrAttemptNotFound
	}
	if ls.learnerID != learnerID {
		perm := NewPermissionError(learnerID, attemptID, "attempt", "access", "attempt belongs to another learner")
		return nil, fmt.Errorf("%w: %w", ErrAttemptAccessDenied, perm)
	}
	return ls, nil
}

func (s *playerService) lookupScope(scope repositories.OutcomeScope) *liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byScope[scope]
}

// register indexes ls under its current attempt id. A retried attempt's
// previous id stops resolving.
func (s *playerService) register(ls *liveSession, attemptID, previousID string) {
	s.mu.Lock()
	if previousID != "" {
		delete(s.byAttempt, previousID)
	}
	s.byAttempt[attemptID] = ls
	displaced := s.byScope[ls.scope]
	s.byScope[ls.scope] = ls
	s.mu.Unlock()

	if displaced != nil && displaced != ls {
		// a concurrent start for the same quiz lost the race
		go s.retire(displaced)
	}
}

// retire closes the session and drops it from the registry. It must not be
// called with s.mu held: closing flushes events back into onSessionEvent.
func (s *playerService) retire(ls *liveSession) {
	ls.session.Close()
	ls.unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, candidate := range s.byAttempt {
		if candidate == ls {
			delete(s.byAttempt, id)
		}
	}
	if s.byScope[ls.scope] == ls {
		delete(s.byScope, ls.scope)
	}
}

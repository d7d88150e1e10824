package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/clock"
	"github.com/SAP-F-2025/training-assessment-service/internal/events"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/progression"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/training-assessment-service/internal/validator"
)

const learner = "learner-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func trainingFixture() *models.Training {
	return &models.Training{
		ID:              "t1",
		Title:           "Warehouse Safety",
		TotalSections:   6,
		FinalExamQuizID: "fx",
		Modules: []models.TrainingModule{
			{ID: "m1", Title: "Basics", Position: 0, QuizID: "q1"},
			{ID: "m2", Title: "Reading", Position: 1},
			{ID: "m3", Title: "Advanced", Position: 2, QuizID: "q3"},
		},
	}
}

func quizFixture() *models.Quiz {
	return &models.Quiz{
		ID:         "q1",
		TrainingID: "t1",
		ModuleID:   "m1",
		Title:      "Basics check",
		Questions: []models.Question{
			{ID: "a", Prompt: "Helmets required?", Kind: models.KindTrueFalse, Options: models.TrueFalseOptions, CorrectAnswer: models.BoolAnswer(true), Points: 1},
			{ID: "b", Prompt: "Run in aisles?", Kind: models.KindTrueFalse, Options: models.TrueFalseOptions, CorrectAnswer: models.BoolAnswer(false), Points: 1},
		},
	}
}

type playerFixture struct {
	repo      *MockRepository
	content   *MockContentSource
	publisher *events.MockEventPublisher
	clock     *clock.Fake
	outcome   *models.ModuleOutcome
	record    *models.AttemptRecord
	service   PlayerService
}

func newPlayerFixture(t *testing.T, submitter attempt.Submitter, outcomes []models.ModuleOutcome) *playerFixture {
	f := &playerFixture{
		repo:      NewMockRepository(),
		content:   &MockContentSource{},
		publisher: events.NewMockEventPublisher(discardLogger()),
		clock:     clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		outcome:   &models.ModuleOutcome{LearnerID: learner, TrainingID: "t1", ModuleID: "m1"},
		record:    &models.AttemptRecord{},
	}

	f.content.On("GetTraining", mock.Anything, "t1").Return(trainingFixture(), nil).Maybe()
	f.content.On("GetModuleQuiz", mock.Anything, "m1").Return(quizFixture(), nil).Maybe()

	f.repo.outcomes.On("ListByTraining", mock.Anything, mock.Anything, mock.Anything, "t1").Return(outcomes, nil).Maybe()
	f.repo.outcomes.On("EnsureEntered", mock.Anything, mock.Anything, mock.Anything).Return(f.outcome, nil).Maybe()
	f.repo.outcomes.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.repo.outcomes.On("Reset", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.repo.attempts.On("CountByLearnerAndQuiz", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Maybe()
	f.repo.attempts.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.repo.attempts.On("GetByID", mock.Anything, mock.Anything, mock.Anything).Return(f.record, nil).Maybe()
	f.repo.attempts.On("LatestByLearnerAndQuiz", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(f.record, nil).Maybe()
	f.repo.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.repo.signals.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	logger := discardLogger()
	v := validator.New()
	defs := NewDefinitions(f.content, nil, time.Minute, v.Quiz(), logger)
	f.service = NewPlayerService(f.repo, defs, submitter, f.publisher, NewTokenIssuer("secret", time.Hour), v,
		PlayerConfig{Clock: f.clock, QuizlessPolicy: progression.QuizlessBlock}, logger)
	t.Cleanup(f.service.Shutdown)
	return f
}

func (f *playerFixture) start(t *testing.T) *attempt.View {
	view, err := f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "m1"})
	require.NoError(t, err)
	return view
}

func (f *playerFixture) answerAndNext(t *testing.T, attemptID string, index int, value models.Answer) *NextResponse {
	ctx := context.Background()
	_, err := f.service.Answer(ctx, learner, attemptID, &AnswerRequest{Index: &index, Answer: value})
	require.NoError(t, err)
	resp, err := f.service.Next(ctx, learner, attemptID)
	require.NoError(t, err)
	return resp
}

func TestPlayerServiceStartAttempt(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)

	view := f.start(t)
	assert.NotEmpty(t, view.AttemptID)
	assert.Equal(t, models.AttemptInProgress, view.Status)
	assert.Equal(t, 0, view.CurrentIndex)
	assert.Equal(t, 2, view.TotalQuestions)
	assert.Empty(t, view.LockedIndices)

	f.repo.outcomes.AssertCalled(t, "EnsureEntered", mock.Anything, mock.Anything,
		repositories.OutcomeScope{LearnerID: learner, TrainingID: "t1", ModuleID: "m1"})
	f.repo.attempts.AssertCalled(t, "Create", mock.Anything, mock.Anything, mock.MatchedBy(func(r *models.AttemptRecord) bool {
		return r.ID == view.AttemptID && r.LearnerID == learner && r.AttemptNumber == 1 && r.Status == models.AttemptInProgress
	}))
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
}

func TestPlayerServiceResumesLiveAttempt(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)

	first := f.start(t)
	second := f.start(t)

	assert.Equal(t, first.AttemptID, second.AttemptID)
	f.repo.attempts.AssertNumberOfCalls(t, "Create", 1)
}

func TestPlayerServiceSubmitRecordsOutcome(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)

	resp := f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))
	assert.False(t, resp.Step.Submitted)
	assert.Equal(t, 1, resp.View.CurrentIndex)
	assert.Equal(t, []int{0}, resp.View.LockedIndices)

	resp = f.answerAndNext(t, view.AttemptID, 1, models.BoolAnswer(false))
	require.True(t, resp.Step.Submitted)
	require.NotNil(t, resp.Step.Result)
	assert.Equal(t, 100, resp.Step.Result.Score)
	assert.True(t, resp.Step.Result.Passed)
	assert.Equal(t, models.AttemptSubmitted, resp.View.Status)

	assert.True(t, f.outcome.Attempted)
	assert.True(t, f.outcome.Passed)
	assert.Equal(t, 100, f.outcome.Score)
	require.NotNil(t, f.outcome.AttemptID)
	assert.Equal(t, view.AttemptID, *f.outcome.AttemptID)

	assert.Equal(t, models.AttemptSubmitted, f.record.Status)
	assert.Equal(t, models.EndReasonLearner, f.record.EndReason)
	assert.NotEmpty(t, f.record.Payload)

	submitted := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, submitted, 1)
	data := submitted[0].Data.(events.AttemptSubmittedData)
	assert.Equal(t, 100, data.Score)
	assert.Equal(t, "m1", data.ModuleID)
}

func TestPlayerServiceModuleGate(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)

	_, err := f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "m3"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleLocked))
	assert.True(t, IsUnauthorized(err))

	var rule *BusinessRuleError
	require.True(t, errors.As(err, &rule))
	assert.Equal(t, string(progression.ReasonNotAttempted), rule.Message)
	assert.Equal(t, "m1", rule.Context["blocking_module_id"])

	_, err = f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", FinalExam: true})
	assert.True(t, errors.Is(err, ErrModuleLocked))

	_, err = f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "nope"})
	assert.True(t, errors.Is(err, ErrModuleNotFound))
}

func TestPlayerServiceModuleWithoutQuiz(t *testing.T) {
	passed := []models.ModuleOutcome{{LearnerID: learner, TrainingID: "t1", ModuleID: "m1", Attempted: true, Passed: true, Score: 100}}
	f := newPlayerFixture(t, nil, passed)

	_, err := f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "m2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, attempt.ErrNoQuizAvailable))
	assert.True(t, IsNotFound(err))
}

func TestPlayerServiceQuizWithoutQuestions(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	empty := quizFixture()
	empty.Questions = nil
	f.content.ExpectedCalls = nil
	f.content.On("GetTraining", mock.Anything, "t1").Return(trainingFixture(), nil)
	f.content.On("GetModuleQuiz", mock.Anything, "m1").Return(empty, nil)

	_, err := f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "m1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, attempt.ErrNoQuizAvailable))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))

	f.repo.outcomes.AssertNotCalled(t, "EnsureEntered", mock.Anything, mock.Anything, mock.Anything)
	f.repo.attempts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlayerServiceValidation(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)

	_, err := f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1"})
	assert.True(t, IsValidation(err))

	_, err = f.service.StartAttempt(context.Background(), learner, &StartAttemptRequest{TrainingID: "t1", ModuleID: "m1", FinalExam: true})
	assert.True(t, IsBusinessRule(err))

	view := f.start(t)
	_, err = f.service.Answer(context.Background(), learner, view.AttemptID, &AnswerRequest{Answer: models.BoolAnswer(true)})
	assert.True(t, IsValidation(err))

	index := 0
	_, err = f.service.Answer(context.Background(), learner, view.AttemptID, &AnswerRequest{Index: &index})
	assert.True(t, IsValidation(err))

	_, err = f.service.Answer(context.Background(), learner, view.AttemptID, &AnswerRequest{Index: &index, Answer: models.TextAnswer("yes")})
	assert.True(t, IsValidation(err))
}

func TestPlayerServiceOwnership(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)

	_, err := f.service.Snapshot(context.Background(), "learner-2", view.AttemptID)
	assert.True(t, errors.Is(err, ErrAttemptAccessDenied))
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = f.service.Snapshot(context.Background(), learner, "missing")
	assert.True(t, errors.Is(err, ErrAttemptNotFound))
}

func TestPlayerServiceNavigation(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))

	_, err := f.service.Navigate(ctx, learner, view.AttemptID, &NavigateRequest{Back: true})
	assert.True(t, errors.Is(err, attempt.ErrQuestionLocked))
	assert.True(t, IsConflict(err))

	target := 0
	_, err = f.service.Navigate(ctx, learner, view.AttemptID, &NavigateRequest{Index: &target})
	assert.True(t, errors.Is(err, attempt.ErrQuestionLocked))

	snapshot, err := f.service.Snapshot(ctx, learner, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.CurrentIndex)

	_, err = f.service.Navigate(ctx, learner, view.AttemptID, &NavigateRequest{})
	assert.True(t, IsValidation(err))
}

func TestPlayerServiceViolationAdvances(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	resp, err := f.service.RecordSignal(ctx, learner, view.AttemptID, proctoring.Signal{Type: proctoring.SignalCopy})
	require.NoError(t, err)
	assert.True(t, resp.Effective)
	assert.Equal(t, models.ViolationCopyAttempt, resp.Observation.Kind)
	assert.True(t, resp.View.CurrentLocked)
	assert.Equal(t, 0, resp.View.CurrentIndex)

	// a second signal on the same question is audited but not effective
	resp, err = f.service.RecordSignal(ctx, learner, view.AttemptID, proctoring.Signal{Type: proctoring.SignalPaste})
	require.NoError(t, err)
	assert.False(t, resp.Effective)

	f.clock.Advance(attempt.DefaultAdvanceDelay)

	snapshot, err := f.service.Snapshot(ctx, learner, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.CurrentIndex)
	assert.Equal(t, []int{0}, snapshot.LockedIndices)
	assert.Equal(t, 1, snapshot.ViolationCount)

	violations := f.publisher.EventsOfType(events.EventAttemptViolation)
	require.Len(t, violations, 1)
	assert.Equal(t, models.ViolationCopyAttempt, violations[0].Data.(events.AttemptViolationData).Kind)

	_, err = f.service.RecordSignal(ctx, learner, view.AttemptID, proctoring.Signal{Type: "screenshot"})
	assert.True(t, IsValidation(err))
}

func TestPlayerServiceRetryResetsOutcome(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(false))
	resp := f.answerAndNext(t, view.AttemptID, 1, models.BoolAnswer(true))
	require.True(t, resp.Step.Submitted)
	assert.False(t, resp.Step.Result.Passed)
	assert.Equal(t, 0, resp.Step.Result.Score)

	retried, err := f.service.Retry(ctx, learner, view.AttemptID, &RetryRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, view.AttemptID, retried.AttemptID)
	assert.Equal(t, models.AttemptInProgress, retried.Status)
	assert.Equal(t, 2, retried.AttemptNumber)
	assert.Empty(t, retried.LockedIndices)

	f.repo.outcomes.AssertCalled(t, "Reset", mock.Anything, mock.Anything,
		repositories.OutcomeScope{LearnerID: learner, TrainingID: "t1", ModuleID: "m1"})
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptRetried), 1)

	_, err = f.service.Snapshot(ctx, learner, view.AttemptID)
	assert.True(t, errors.Is(err, ErrAttemptNotFound))
}

func TestPlayerServiceRejection(t *testing.T) {
	sub := &MockSubmitter{}
	sub.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.SubmissionVerdict{SecurityViolation: true, SecurityMessage: "too many tab switches"}, nil)
	f := newPlayerFixture(t, sub, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))
	index := 1
	_, err := f.service.Answer(ctx, learner, view.AttemptID, &AnswerRequest{Index: &index, Answer: models.BoolAnswer(false)})
	require.NoError(t, err)

	_, err = f.service.Next(ctx, learner, view.AttemptID)
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	assert.Equal(t, models.AttemptRejected, f.record.Status)
	require.NotNil(t, f.record.SecurityMessage)
	assert.Equal(t, "too many tab switches", *f.record.SecurityMessage)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptRejected), 1)
	f.repo.outcomes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.service.Retry(ctx, learner, view.AttemptID, &RetryRequest{Force: true})
	assert.True(t, errors.Is(err, attempt.ErrRetryNotAllowed))
}

func TestPlayerServiceStartAfterRejectionIsRefused(t *testing.T) {
	sub := &MockSubmitter{}
	sub.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.SubmissionVerdict{SecurityViolation: true, SecurityMessage: "x"}, nil)
	f := newPlayerFixture(t, sub, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))
	index := 1
	_, err := f.service.Answer(ctx, learner, view.AttemptID, &AnswerRequest{Index: &index, Answer: models.BoolAnswer(false)})
	require.NoError(t, err)
	_, err = f.service.Next(ctx, learner, view.AttemptID)
	require.True(t, IsRejected(err))

	req := &StartAttemptRequest{TrainingID: "t1", ModuleID: "m1"}
	_, err = f.service.StartAttempt(ctx, learner, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, attempt.ErrRetryNotAllowed))
	assert.True(t, IsRejected(err))

	// the persisted rejection still holds once the live session is gone
	require.NoError(t, f.service.Close(ctx, learner, view.AttemptID))
	_, err = f.service.StartAttempt(ctx, learner, req)
	assert.True(t, errors.Is(err, attempt.ErrRetryNotAllowed))
	assert.True(t, IsRejected(err))

	f.repo.attempts.AssertNumberOfCalls(t, "Create", 1)
	f.repo.outcomes.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlayerServiceStartAfterPassKeepsOutcome(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))
	resp := f.answerAndNext(t, view.AttemptID, 1, models.BoolAnswer(false))
	require.True(t, resp.Step.Result.Passed)

	req := &StartAttemptRequest{TrainingID: "t1", ModuleID: "m1"}
	_, err := f.service.StartAttempt(ctx, learner, req)
	assert.True(t, errors.Is(err, attempt.ErrRetryNotAllowed))
	assert.True(t, IsConflict(err))

	require.NoError(t, f.service.Close(ctx, learner, view.AttemptID))
	_, err = f.service.StartAttempt(ctx, learner, req)
	assert.True(t, errors.Is(err, attempt.ErrRetryNotAllowed))

	f.repo.outcomes.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything, mock.Anything)
	f.repo.attempts.AssertNumberOfCalls(t, "Create", 1)
	assert.True(t, f.outcome.Attempted)
	assert.True(t, f.outcome.Passed)
}

func TestPlayerServiceStartAfterFailureRetries(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(false))
	resp := f.answerAndNext(t, view.AttemptID, 1, models.BoolAnswer(true))
	require.False(t, resp.Step.Result.Passed)

	retried := f.start(t)
	assert.NotEqual(t, view.AttemptID, retried.AttemptID)
	assert.Equal(t, 2, retried.AttemptNumber)
	assert.Equal(t, models.AttemptInProgress, retried.Status)
	f.repo.outcomes.AssertNumberOfCalls(t, "Reset", 1)

	// without a live session the failed outcome is rolled back before starting
	require.NoError(t, f.service.Close(ctx, learner, retried.AttemptID))
	fresh := f.start(t)
	assert.NotEqual(t, retried.AttemptID, fresh.AttemptID)
	f.repo.outcomes.AssertNumberOfCalls(t, "Reset", 2)
	assert.False(t, f.outcome.Attempted)
}

func TestPlayerServiceResubmitAfterTransportFailure(t *testing.T) {
	sub := &MockSubmitter{}
	sub.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
	passed := true
	sub.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(&models.SubmissionVerdict{Score: 90, Passed: &passed}, nil).Once()
	f := newPlayerFixture(t, sub, nil)
	view := f.start(t)
	ctx := context.Background()

	f.answerAndNext(t, view.AttemptID, 0, models.BoolAnswer(true))
	index := 1
	_, err := f.service.Answer(ctx, learner, view.AttemptID, &AnswerRequest{Index: &index, Answer: models.BoolAnswer(false)})
	require.NoError(t, err)

	_, err = f.service.Next(ctx, learner, view.AttemptID)
	require.Error(t, err)
	assert.True(t, IsUpstream(err))

	snapshot, err := f.service.Snapshot(ctx, learner, view.AttemptID)
	require.NoError(t, err)
	assert.True(t, snapshot.SubmissionPending)

	res, err := f.service.Submit(ctx, learner, view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 90, res.Score)
	assert.True(t, res.ServerScored)
	assert.Equal(t, 100, res.ClientScore.Percent)

	require.Len(t, sub.Calls, 2)
	assert.Same(t, sub.Calls[0].Arguments.Get(2), sub.Calls[1].Arguments.Get(2))
	assert.Equal(t, 90, f.outcome.Score)
}

func TestPlayerServiceCloseAbandonsAttempt(t *testing.T) {
	f := newPlayerFixture(t, nil, nil)
	view := f.start(t)
	ctx := context.Background()

	_, err := f.service.RecordSignal(ctx, learner, view.AttemptID, proctoring.Signal{Type: proctoring.SignalContextMenu})
	require.NoError(t, err)

	require.NoError(t, f.service.Close(ctx, learner, view.AttemptID))
	assert.Equal(t, models.AttemptAbandoned, f.record.Status)
	assert.Equal(t, 0, f.clock.Pending())

	f.repo.signals.AssertCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.MatchedBy(func(batch []*models.ProctoringEvent) bool {
		return len(batch) == 1 && batch[0].Kind == models.ViolationRightClick && batch[0].Effective && batch[0].QuestionID == "a"
	}))

	_, err = f.service.Snapshot(ctx, learner, view.AttemptID)
	assert.True(t, errors.Is(err, ErrAttemptNotFound))
}

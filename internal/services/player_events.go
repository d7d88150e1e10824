package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/events"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// onSessionEvent persists and publishes what a session reports. It runs after
// the session has released its lock, on whichever goroutine caused the event.
func (s *playerService) onSessionEvent(ls *liveSession, e attempt.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	logger := s.logger.With("attempt_id", e.AttemptID, "learner_id", ls.learnerID)

	switch e.Type {
	case attempt.EventAttemptStarted, attempt.EventRetried:
		s.register(ls, e.AttemptID, e.PreviousAttemptID)
		if e.Type == attempt.EventRetried {
			if err := s.repo.Outcomes().Reset(ctx, nil, ls.scope); err != nil {
				logger.Error("Failed to reset outcome on retry", "error", err)
			}
		}
		number, err := s.createRecord(ctx, ls, e.AttemptID)
		if err != nil {
			logger.Error("Failed to create attempt record", "error", err)
		}
		s.publishStart(ctx, ls, e, number)

	case attempt.EventViolation:
		s.svcLogger.LogSecurityEvent(ctx, SecurityEvent{
			Type:        SecurityEventIntegrityViolation,
			Severity:    SecuritySeverityMedium,
			UserID:      ls.learnerID,
			AttemptID:   e.AttemptID,
			Description: "integrity violation " + string(e.Kind),
			Timestamp:   e.At,
			Metadata:    map[string]interface{}{"question_id": e.QuestionID, "question_index": e.QuestionIndex},
		})
		s.publish(ctx, events.NewAttemptViolationEvent(events.AttemptViolationData{
			AttemptID:     e.AttemptID,
			LearnerID:     ls.learnerID,
			QuizID:        ls.quiz.ID,
			QuestionID:    e.QuestionID,
			QuestionIndex: e.QuestionIndex,
			Kind:          e.Kind,
			OccurredAt:    e.At,
		}))

	case attempt.EventSubmitting:
		if err := s.persistAudit(ctx, ls, e.AttemptID); err != nil {
			logger.Error("Failed to persist signal audit", "error", err)
		}
		if err := s.syncRecord(ctx, nil, ls, e.AttemptID); err != nil {
			logger.Error("Failed to update attempt record", "error", err)
		}

	case attempt.EventSubmissionFailed:
		if err := s.syncRecord(ctx, nil, ls, e.AttemptID); err != nil {
			logger.Error("Failed to update attempt record", "error", err)
		}

	case attempt.EventSubmitted:
		if err := s.recordSubmission(ctx, ls, e); err != nil {
			logger.Error("Failed to record submission", "error", err)
		}
		res := e.Result
		s.publish(ctx, events.NewAttemptSubmittedEvent(events.AttemptSubmittedData{
			AttemptID:      e.AttemptID,
			LearnerID:      ls.learnerID,
			TrainingID:     ls.training.ID,
			QuizID:         ls.quiz.ID,
			ModuleID:       ls.quiz.ModuleID,
			Score:          res.Score,
			ClientScore:    res.ClientScore.Percent,
			Passed:         res.Passed,
			ViolationCount: s.violationCount(ls),
			EndReason:      res.EndReason,
		}))

	case attempt.EventRejected:
		if err := s.syncRecord(ctx, nil, ls, e.AttemptID); err != nil {
			logger.Error("Failed to update attempt record", "error", err)
		}
		s.svcLogger.LogSecurityEvent(ctx, SecurityEvent{
			Type:        SecurityEventAttemptRejected,
			Severity:    SecuritySeverityHigh,
			UserID:      ls.learnerID,
			AttemptID:   e.AttemptID,
			Description: "attempt rejected by grading server",
			Timestamp:   e.At,
			Metadata:    map[string]interface{}{"message": e.Message},
		})
		s.publish(ctx, events.NewAttemptRejectedEvent(events.AttemptRejectedData{
			AttemptID: e.AttemptID,
			LearnerID: ls.learnerID,
			QuizID:    ls.quiz.ID,
			Message:   e.Message,
		}))

	case attempt.EventClosed:
		if err := s.persistAudit(ctx, ls, e.AttemptID); err != nil {
			logger.Error("Failed to persist signal audit", "error", err)
		}
		if err := s.syncRecord(ctx, nil, ls, e.AttemptID); err != nil {
			logger.Error("Failed to update attempt record", "error", err)
		}
	}
}

func (s *playerService) publishStart(ctx context.Context, ls *liveSession, e attempt.Event, number int) {
	if e.Type == attempt.EventRetried {
		s.publish(ctx, events.NewAttemptRetriedEvent(events.AttemptRetriedData{
			AttemptID:         e.AttemptID,
			PreviousAttemptID: e.PreviousAttemptID,
			LearnerID:         ls.learnerID,
			QuizID:            ls.quiz.ID,
			ModuleID:          ls.quiz.ModuleID,
		}))
		return
	}
	s.publish(ctx, events.NewAttemptStartedEvent(events.AttemptStartedData{
		AttemptID:     e.AttemptID,
		AttemptNumber: number,
		LearnerID:     ls.learnerID,
		TrainingID:    ls.training.ID,
		QuizID:        ls.quiz.ID,
		ModuleID:      ls.quiz.ModuleID,
		StartedAt:     e.At,
		TimeLimit:     ls.quiz.TimeLimitMinutes,
	}))
}

func (s *playerService) publish(ctx context.Context, event *events.AttemptEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish attempt event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}

// exportFor returns the session's export when it still describes attemptID.
func exportFor(ls *liveSession, attemptID string) (*attempt.Export, error) {
	exp, err := ls.session.Export()
	if err != nil {
		return nil, err
	}
	if exp.AttemptID != attemptID {
		return nil, fmt.Errorf("attempt %s is no longer current", attemptID)
	}
	return exp, nil
}

func (s *playerService) violationCount(ls *liveSession) int {
	exp, err := ls.session.Export()
	if err != nil {
		return 0
	}
	return len(exp.Violations)
}

func (s *playerService) createRecord(ctx context.Context, ls *liveSession, attemptID string) (int, error) {
	exp, err := exportFor(ls, attemptID)
	if err != nil {
		return 0, err
	}
	record := &models.AttemptRecord{
		ID:            exp.AttemptID,
		LearnerID:     ls.learnerID,
		TrainingID:    ls.training.ID,
		QuizID:        ls.quiz.ID,
		ModuleID:      ls.quiz.ModuleID,
		FinalExam:     ls.quiz.IsFinalExam(),
		AttemptNumber: exp.Number,
		Status:        exp.Status,
		StartedAt:     exp.StartedAt,
	}
	return exp.Number, s.repo.Attempts().Create(ctx, nil, record)
}

// syncRecord copies the session's view of the attempt onto its record.
func (s *playerService) syncRecord(ctx context.Context, tx *gorm.DB, ls *liveSession, attemptID string) error {
	exp, err := exportFor(ls, attemptID)
	if err != nil {
		return err
	}
	record, err := s.repo.Attempts().GetByID(ctx, tx, attemptID)
	if err != nil {
		return err
	}
	if err := applyExport(record, exp); err != nil {
		return err
	}
	return s.repo.Attempts().Update(ctx, tx, record)
}

func applyExport(record *models.AttemptRecord, exp *attempt.Export) error {
	record.Status = exp.Status
	record.EndReason = exp.EndReason
	record.ViolationCount = len(exp.Violations)
	record.Score = exp.Score
	record.Passed = exp.Passed
	if !exp.EndedAt.IsZero() {
		ended := exp.EndedAt
		record.EndedAt = &ended
	}
	if exp.ClientScore != nil {
		percent := exp.ClientScore.Percent
		record.ClientScore = &percent
	}
	if exp.Payload != nil {
		data, err := json.Marshal(exp.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		record.Payload = datatypes.JSON(data)
	}
	if exp.Verdict != nil {
		data, err := json.Marshal(exp.Verdict)
		if err != nil {
			return fmt.Errorf("failed to encode verdict: %w", err)
		}
		record.Verdict = datatypes.JSON(data)
		if exp.Verdict.SecurityViolation {
			message := exp.Verdict.SecurityMessage
			record.SecurityMessage = &message
		}
	}
	return nil
}

// recordSubmission stores the attempt result and the module outcome together.
func (s *playerService) recordSubmission(ctx context.Context, ls *liveSession, e attempt.Event) error {
	res := e.Result
	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.syncRecord(ctx, tx, ls, e.AttemptID); err != nil {
			return err
		}
		outcome, err := s.repo.Outcomes().EnsureEntered(ctx, tx, ls.scope)
		if err != nil {
			return err
		}
		attemptID := e.AttemptID
		completed := e.At
		outcome.Attempted = true
		outcome.Passed = res.Passed
		outcome.Score = res.Score
		outcome.AttemptID = &attemptID
		outcome.CompletedAt = &completed
		return s.repo.Outcomes().Save(ctx, tx, outcome)
	})
}

// persistAudit stores the attempt's full signal audit once. The monitor is
// disarmed by then, so the audit is complete.
func (s *playerService) persistAudit(ctx context.Context, ls *liveSession, attemptID string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.auditSaved[attemptID] {
		return nil
	}
	exp, err := exportFor(ls, attemptID)
	if err != nil {
		return err
	}

	batch := make([]*models.ProctoringEvent, 0, len(exp.Observations))
	for _, obs := range exp.Observations {
		batch = append(batch, &models.ProctoringEvent{
			AttemptID:     attemptID,
			QuestionID:    ls.quiz.Questions[obs.QuestionIndex].ID,
			QuestionIndex: obs.QuestionIndex,
			Kind:          obs.Kind,
			Effective:     obs.Effective,
			Signal:        string(obs.Signal),
			Key:           obs.Key,
			OccurredAt:    obs.At,
		})
	}
	if len(batch) > 0 {
		if err := s.repo.ProctoringEvents().CreateBatch(ctx, nil, batch); err != nil {
			return err
		}
	}
	ls.auditSaved[attemptID] = true
	return nil
}

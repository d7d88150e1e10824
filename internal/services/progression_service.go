package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/cache"
	"github.com/SAP-F-2025/training-assessment-service/internal/events"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/progression"
	"github.com/SAP-F-2025/training-assessment-service/internal/repositories"
)

// issuedCertificateTTL bounds how long a certificate.issued event is
// suppressed for repeat certificate reads.
const issuedCertificateTTL = 30 * 24 * time.Hour

type progressionService struct {
	repo        repositories.Repository
	definitions *Definitions
	publisher   events.EventPublisher
	cache       cache.CacheService
	policy      progression.QuizlessPolicy
	logger      *slog.Logger
}

func NewProgressionService(
	repo repositories.Repository,
	definitions *Definitions,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	policy progression.QuizlessPolicy,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		repo:        repo,
		definitions: definitions,
		publisher:   publisher,
		cache:       cacheService,
		policy:      policy,
		logger:      logger,
	}
}

func (s *progressionService) CanEnterModule(ctx context.Context, learnerID, trainingID string, moduleIndex int) (*progression.Decision, error) {
	training, outcomes, err := s.load(ctx, learnerID, trainingID)
	if err != nil {
		return nil, err
	}
	if moduleIndex < 0 || moduleIndex >= len(training.Modules) {
		return nil, ErrModuleNotFound
	}

	d := s.gate(training).Evaluate(moduleIndex, outcomes)
	s.logger.Debug("Module gate evaluated",
		"learner_id", learnerID,
		"training_id", trainingID,
		"module_index", moduleIndex,
		"allowed", d.Allowed,
		"reason", d.Reason)
	return &d, nil
}

func (s *progressionService) CanEnterFinalExam(ctx context.Context, learnerID, trainingID string) (*progression.Decision, error) {
	training, outcomes, err := s.load(ctx, learnerID, trainingID)
	if err != nil {
		return nil, err
	}
	if !training.HasFinalExam() {
		return nil, ErrQuizNotFound
	}
	d := s.gate(training).EvaluateFinalExam(outcomes)
	return &d, nil
}

func (s *progressionService) Outcomes(ctx context.Context, learnerID, trainingID string) ([]models.ModuleOutcome, error) {
	outcomes, err := s.repo.Outcomes().ListByTraining(ctx, nil, learnerID, trainingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}
	return outcomes, nil
}

// GetCertificate returns ErrNotCertified until the training is complete.
func (s *progressionService) GetCertificate(ctx context.Context, learnerID, learnerName, trainingID string) (*models.Certificate, error) {
	training, outcomes, err := s.load(ctx, learnerID, trainingID)
	if err != nil {
		return nil, err
	}
	if learnerName == "" {
		learnerName = learnerID
	}

	input := progression.CertificationInput{
		LearnerName:   learnerName,
		TrainingID:    training.ID,
		TrainingTitle: training.Title,
		TotalSections: training.TotalSections,
		Modules:       progression.ModulesFromTraining(training),
		Outcomes:      outcomes,
		HasFinalExam:  training.HasFinalExam(),
	}
	for i := range outcomes {
		if outcomes[i].FinalExam {
			input.FinalExamOutcome = &outcomes[i]
		}
	}

	cert := progression.NewCertificationEngine(s.policy).Evaluate(input)
	if cert == nil {
		return nil, ErrNotCertified
	}
	s.announce(ctx, learnerID, cert)
	return cert, nil
}

// announce publishes certificate.issued the first time a certificate is seen.
func (s *progressionService) announce(ctx context.Context, learnerID string, cert *models.Certificate) {
	if s.publisher == nil {
		return
	}
	key := fmt.Sprintf("certificate:%s:%s", learnerID, cert.TrainingID)
	if s.cache != nil {
		var seen bool
		if err := s.cache.Get(ctx, key, &seen); err == nil && seen {
			return
		} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Certificate cache read failed", "key", key, "error", err)
		}
	}

	if err := s.publisher.PublishAttemptEvent(ctx, events.NewCertificateIssuedEvent(learnerID, *cert)); err != nil {
		s.logger.Warn("Failed to publish certificate event", "learner_id", learnerID, "error", err)
		return
	}
	s.logger.Info("Certificate issued", "learner_id", learnerID, "training_id", cert.TrainingID)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, true, issuedCertificateTTL); err != nil {
			s.logger.Warn("Certificate cache write failed", "key", key, "error", err)
		}
	}
}

func (s *progressionService) load(ctx context.Context, learnerID, trainingID string) (*models.Training, []models.ModuleOutcome, error) {
	training, err := s.definitions.Training(ctx, trainingID)
	if err != nil {
		return nil, nil, err
	}
	outcomes, err := s.Outcomes(ctx, learnerID, trainingID)
	if err != nil {
		return nil, nil, err
	}
	return training, outcomes, nil
}

func (s *progressionService) gate(training *models.Training) *progression.ModuleGate {
	return progression.NewModuleGate(progression.ModulesFromTraining(training), s.policy, s.logger)
}

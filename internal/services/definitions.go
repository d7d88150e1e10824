package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/cache"
	"github.com/SAP-F-2025/training-assessment-service/internal/client"
	"github.com/SAP-F-2025/training-assessment-service/internal/models"
	"github.com/SAP-F-2025/training-assessment-service/internal/validator"
)

// ContentSource loads training and quiz definitions. Implemented by
// client.ContentClient.
type ContentSource interface {
	GetTraining(ctx context.Context, trainingID string) (*models.Training, error)
	GetModuleQuiz(ctx context.Context, moduleID string) (*models.Quiz, error)
	GetFinalExam(ctx context.Context, trainingID string) (*models.Quiz, error)
}

// Definitions is a read-through cache in front of a ContentSource. Quizzes
// are validated before they are cached or handed to a session.
type Definitions struct {
	source    ContentSource
	cache     cache.CacheService
	ttl       time.Duration
	validator *validator.QuizValidator
	logger    *slog.Logger
}

func NewDefinitions(source ContentSource, cacheService cache.CacheService, ttl time.Duration, v *validator.QuizValidator, logger *slog.Logger) *Definitions {
	return &Definitions{
		source:    source,
		cache:     cacheService,
		ttl:       ttl,
		validator: v,
		logger:    logger,
	}
}

func (d *Definitions) Training(ctx context.Context, trainingID string) (*models.Training, error) {
	var training models.Training
	key := "training:" + trainingID
	if d.fromCache(ctx, key, &training) {
		return &training, nil
	}

	t, err := d.source.GetTraining(ctx, trainingID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, ErrTrainingNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	d.toCache(ctx, key, t)
	return t, nil
}

// ModuleQuiz returns ErrQuizNotFound for a module without a quiz and
// attempt.ErrNoQuizAvailable for a quiz without questions.
func (d *Definitions) ModuleQuiz(ctx context.Context, moduleID string) (*models.Quiz, error) {
	return d.quiz(ctx, "quiz:module:"+moduleID, func() (*models.Quiz, error) {
		return d.source.GetModuleQuiz(ctx, moduleID)
	})
}

func (d *Definitions) FinalExam(ctx context.Context, trainingID string) (*models.Quiz, error) {
	return d.quiz(ctx, "quiz:final:"+trainingID, func() (*models.Quiz, error) {
		return d.source.GetFinalExam(ctx, trainingID)
	})
}

func (d *Definitions) quiz(ctx context.Context, key string, load func() (*models.Quiz, error)) (*models.Quiz, error) {
	var quiz models.Quiz
	if d.fromCache(ctx, key, &quiz) {
		return &quiz, nil
	}

	q, err := load()
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if q == nil || len(q.Questions) == 0 {
		// nothing to administer, which is not a fault of the request
		return nil, attempt.ErrNoQuizAvailable
	}
	if d.validator != nil {
		if err := d.validator.ValidateQuiz(q); err != nil {
			d.logger.Error("Quiz definition failed validation", "quiz_id", q.ID, "error", err)
			return nil, err
		}
	}
	d.toCache(ctx, key, q)
	return q, nil
}

func (d *Definitions) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if d.cache == nil {
		return false
	}
	err := d.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		d.logger.Warn("Definition cache read failed", "key", key, "error", err)
	}
	return false
}

func (d *Definitions) toCache(ctx context.Context, key string, value interface{}) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, key, value, d.ttl); err != nil {
		d.logger.Warn("Definition cache write failed", "key", key, "error", err)
	}
}

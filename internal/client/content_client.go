package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// ContentClient reads training and quiz definitions from the content layer.
type ContentClient struct {
	baseClient
}

func NewContentClient(baseURL string, timeout time.Duration) *ContentClient {
	return &ContentClient{baseClient: newBaseClient(baseURL, timeout)}
}

func (c *ContentClient) GetTraining(ctx context.Context, trainingID string) (*models.Training, error) {
	var training models.Training
	if err := c.getJSON(ctx, "/api/v1/trainings/"+url.PathEscape(trainingID), &training); err != nil {
		return nil, fmt.Errorf("get training %s: %w", trainingID, err)
	}
	return &training, nil
}

// GetModuleQuiz returns ErrNotFound when the module has no quiz.
func (c *ContentClient) GetModuleQuiz(ctx context.Context, moduleID string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := c.getJSON(ctx, "/api/v1/modules/"+url.PathEscape(moduleID)+"/quiz", &quiz); err != nil {
		return nil, fmt.Errorf("get quiz for module %s: %w", moduleID, err)
	}
	return &quiz, nil
}

// GetFinalExam returns ErrNotFound when the training has no final exam.
func (c *ContentClient) GetFinalExam(ctx context.Context, trainingID string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := c.getJSON(ctx, "/api/v1/trainings/"+url.PathEscape(trainingID)+"/final-exam", &quiz); err != nil {
		return nil, fmt.Errorf("get final exam for training %s: %w", trainingID, err)
	}
	return &quiz, nil
}

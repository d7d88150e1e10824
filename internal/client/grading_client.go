package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/SAP-F-2025/training-assessment-service/internal/models"
)

// GradingClient submits frozen attempt payloads to the grading server. It
// satisfies attempt.Submitter.
type GradingClient struct {
	baseClient
}

func NewGradingClient(baseURL string, timeout time.Duration) *GradingClient {
	return &GradingClient{baseClient: newBaseClient(baseURL, timeout)}
}

// Submit returns the server verdict. Security rejections come back as a
// verdict, whatever the status code; anything else that is not a 2xx is an
// error and leaves the attempt resubmittable.
func (c *GradingClient) Submit(ctx context.Context, quiz *models.Quiz, payload *models.SubmissionPayload) (*models.SubmissionVerdict, error) {
	path := "/api/v1/quizzes/" + url.PathEscape(quiz.ID) + "/submissions"

	var verdict models.SubmissionVerdict
	req := c.request(ctx).
		SetBody(payload).
		SetResult(&verdict)
	if payload.Metadata.SessionToken != "" {
		req.SetAuthToken(payload.Metadata.SessionToken)
	}

	res, err := req.Post(path)
	if err != nil {
		return nil, fmt.Errorf("submit quiz %s: %w", quiz.ID, err)
	}
	if res.IsSuccess() {
		return &verdict, nil
	}

	switch res.StatusCode() {
	case http.StatusForbidden, http.StatusUnprocessableEntity:
		// may still be a security verdict
		var rejected models.SubmissionVerdict
		if json.Unmarshal(res.Body(), &rejected) == nil && rejected.SecurityViolation {
			return &rejected, nil
		}
	}
	return nil, statusError(res)
}

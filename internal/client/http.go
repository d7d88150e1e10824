// Package client talks to the collaborators this service depends on: the
// content layer for quiz and training definitions, and the grading server
// for authoritative submission verdicts.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNotFound = errors.New("resource not found")

const maxErrorBody = 512

// StatusError is a non-success response from a collaborator.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

type baseClient struct {
	rest *resty.Client
}

func newBaseClient(baseURL string, timeout time.Duration) baseClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return baseClient{rest: rest}
}

// request starts a JSON request bound to ctx. Bodies are decoded as JSON
// whatever content type the collaborator declares.
func (c baseClient) request(ctx context.Context) *resty.Request {
	return c.rest.R().
		SetContext(ctx).
		ForceContentType("application/json")
}

func (c baseClient) getJSON(ctx context.Context, path string, dest any) error {
	res, err := c.request(ctx).
		SetResult(dest).
		Get(path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}

	if res.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if !res.IsSuccess() {
		return statusError(res)
	}
	return nil
}

func statusError(res *resty.Response) *StatusError {
	body := res.String()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{
		Method:     res.Request.Method,
		URL:        res.Request.URL,
		StatusCode: res.StatusCode(),
		Body:       body,
	}
}

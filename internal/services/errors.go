package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/training-assessment-service/internal/attempt"
	"github.com/SAP-F-2025/training-assessment-service/internal/client"
	apperrors "github.com/SAP-F-2025/training-assessment-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")
	ErrUpstream         = errors.New("upstream service unavailable")

	// Training specific errors
	ErrTrainingNotFound = errors.New("training not found")
	ErrModuleNotFound   = errors.New("module not found in training")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrModuleLocked     = errors.New("module is locked")
	ErrNotCertified     = errors.New("training not yet completed")

	// Attempt specific errors
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptAccessDenied = errors.New("access denied to attempt")

	// Session token errors
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error {
	return ErrForbidden
}

// ===== ERROR HELPERS =====

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTrainingNotFound) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrNotCertified) ||
		errors.Is(err, attempt.ErrNoQuizAvailable) ||
		errors.Is(err, client.ErrNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAttemptAccessDenied) ||
		errors.Is(err, ErrModuleLocked) ||
		errors.Is(err, ErrInvalidSessionToken)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, attempt.ErrInvalidAnswer) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a state conflict: locked questions,
// illegal navigation and lifecycle misuse all land here.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		attempt.IsNavigation(err) ||
		errors.Is(err, attempt.ErrAttemptNotActive) ||
		errors.Is(err, attempt.ErrAttemptAlreadyActive) ||
		errors.Is(err, attempt.ErrAttemptNotStarted) ||
		errors.Is(err, attempt.ErrAttemptLimitExceeded) ||
		errors.Is(err, attempt.ErrRetryNotAllowed) ||
		errors.Is(err, attempt.ErrSessionClosed) ||
		errors.Is(err, attempt.ErrSubmissionPending)
}

// IsUpstream checks if error came from a collaborator that could not answer
func IsUpstream(err error) bool {
	var se *client.StatusError
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, attempt.ErrSubmissionTransport) ||
		errors.As(err, &se)
}

// IsRejected checks if the grading server rejected the attempt for integrity
func IsRejected(err error) bool {
	return errors.Is(err, attempt.ErrSecurityRejected)
}

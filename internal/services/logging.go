package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, service string) *ServiceLogger {
	return &ServiceLogger{logger: logger.With("service", service)}
}

// ===== OPERATION LOGGING =====

// LogOperation picks the level from the error class: expected learner
// mistakes are warnings, collaborator failures are errors.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err) || IsBusinessRule(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsRejected(err):
			level = slog.LevelWarn
			status = "rejected"
		case IsUnauthorized(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsConflict(err):
			level = slog.LevelInfo
			status = "conflict"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		var businessErr *BusinessRuleError
		var permErr *PermissionError
		switch {
		case errors.As(err, &validationErr):
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		case errors.As(err, &businessErr):
			attrs = append(attrs, slog.String("business_rule", businessErr.Rule))
		case errors.As(err, &permErr):
			attrs = append(attrs, slog.String("permission_action", permErr.Action))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// ===== SECURITY LOGGING =====

type SecurityEventType string
type SecuritySeverity string

const (
	SecurityEventIntegrityViolation SecurityEventType = "integrity_violation"
	SecurityEventAttemptRejected    SecurityEventType = "attempt_rejected"
	SecurityEventUnauthorizedAccess SecurityEventType = "unauthorized_access"

	SecuritySeverityLow    SecuritySeverity = "low"
	SecuritySeverityMedium SecuritySeverity = "medium"
	SecuritySeverityHigh   SecuritySeverity = "high"
)

type SecurityEvent struct {
	Type        SecurityEventType      `json:"type"`
	Severity    SecuritySeverity       `json:"severity"`
	UserID      string                 `json:"user_id"`
	AttemptID   string                 `json:"attempt_id,omitempty"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (l *ServiceLogger) LogSecurityEvent(ctx context.Context, event SecurityEvent) {
	level := slog.LevelWarn
	if event.Severity == SecuritySeverityHigh {
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("security_event", string(event.Type)),
		slog.String("severity", string(event.Severity)),
		slog.String("user_id", event.UserID),
		slog.String("attempt_id", event.AttemptID),
		slog.Time("timestamp", event.Timestamp),
	}
	for key, value := range event.Metadata {
		attrs = append(attrs, slog.Any("meta_"+key, value))
	}

	l.logger.LogAttrs(ctx, level, "Security: "+event.Description, attrs...)
}

// ===== CONTEXTUAL LOGGER =====

// OperationLogger times one operation and logs its outcome
type OperationLogger struct {
	logger    *ServiceLogger
	ctx       context.Context
	operation string
	userID    string
	startTime time.Time
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *OperationLogger {
	return &OperationLogger{
		logger:    l,
		ctx:       ctx,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
	}
}

func (ol *OperationLogger) LogResult(resourceID, resourceType string, err error) {
	ol.logger.LogOperation(ol.ctx, ol.operation, ol.userID, resourceID, resourceType, time.Since(ol.startTime), err)
}

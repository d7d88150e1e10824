package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides request logging and error mapping for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.GetLoggerFromContext(c, h.logger).With("user_id", c.GetString(userIDKey))
}

// LogRequest logs an incoming request with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	h.log(c).Info(message, additionalFields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.log(c).LogError(err, message, additionalFields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	resp := ErrorResponse{Message: message}
	if len(details) > 0 {
		resp.Details = details[0]
	}

	if statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.log(c).Warn(message, "status_code", statusCode, "error", err)
	}
	c.JSON(statusCode, resp)
}

// handleServiceError maps service errors onto HTTP responses. Order matters:
// a locked module is both a business rule and an authorization failure.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	var businessRuleError *services.BusinessRuleError
	var permissionError *services.PermissionError

	switch {
	case services.IsRejected(err):
		h.RespondWithError(c, http.StatusForbidden, "Attempt rejected by the integrity check", err,
			map[string]interface{}{"reason": err.Error()})

	case errors.As(err, &validationErrors):
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)

	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, err.Error())

	case errors.Is(err, services.ErrModuleLocked) && errors.As(err, &businessRuleError):
		h.RespondWithError(c, http.StatusForbidden, businessRuleError.Message, err, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})

	case errors.As(err, &permissionError):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})

	case errors.Is(err, services.ErrNotCertified):
		h.RespondWithError(c, http.StatusNotFound, "Training not completed", err)

	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", err, err.Error())

	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, err.Error())

	case errors.As(err, &businessRuleError):
		h.RespondWithError(c, http.StatusUnprocessableEntity, businessRuleError.Message, err, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})

	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "Action not allowed in the current attempt state", err, err.Error())

	case services.IsUpstream(err):
		h.RespondWithError(c, http.StatusBadGateway, "Upstream service unavailable", err, err.Error())

	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "training-assessment-service",
	})
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/training-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttemptHandler struct {
	BaseHandler
	playerService services.PlayerService
	reportService services.ReportService
}

func NewAttemptHandler(
	playerService services.PlayerService,
	reportService services.ReportService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:   NewBaseHandler(logger),
		playerService: playerService,
		reportService: reportService,
	}
}

// StartAttempt starts or resumes the learner's attempt on a module quiz or
// the final exam
// @Summary Start attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Quiz selection"
// @Success 201 {object} attempt.View
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}
	req.UserAgent = c.Request.UserAgent()

	h.LogRequest(c, "Starting attempt", "training_id", req.TrainingID, "module_id", req.ModuleID, "final_exam", req.FinalExam)

	view, err := h.playerService.StartAttempt(c.Request.Context(), c.GetString(userIDKey), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetAttempt returns the live state of an attempt
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} attempt.View
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	view, err := h.playerService.Snapshot(c.Request.Context(), c.GetString(userIDKey), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RecordSignal feeds one browser integrity signal to the attempt's monitor
// @Summary Record integrity signal
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param signal body proctoring.Signal true "Signal"
// @Success 200 {object} services.SignalResponse
// @Router /attempts/{id}/signals [post]
func (h *AttemptHandler) RecordSignal(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var sig proctoring.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	resp, err := h.playerService.RecordSignal(c.Request.Context(), c.GetString(userIDKey), id, sig)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Answer records the answer for the current question
// @Summary Answer question
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param answer body services.AnswerRequest true "Answer"
// @Success 200 {object} attempt.View
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/answer [put]
func (h *AttemptHandler) Answer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	view, err := h.playerService.Answer(c.Request.Context(), c.GetString(userIDKey), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Next locks the current question and moves on, submitting after the last
// @Summary Next question
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} services.NextResponse
// @Router /attempts/{id}/next [post]
func (h *AttemptHandler) Next(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	resp, err := h.playerService.Next(c.Request.Context(), c.GetString(userIDKey), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Navigate moves back or to an unlocked earlier question
// @Summary Navigate
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param target body services.NavigateRequest true "Target"
// @Success 200 {object} attempt.View
// @Router /attempts/{id}/navigate [post]
func (h *AttemptHandler) Navigate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	view, err := h.playerService.Navigate(c.Request.Context(), c.GetString(userIDKey), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Submit submits the attempt, or resends the pending payload after a
// transport failure
// @Summary Submit attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} attempt.Result
// @Failure 502 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", id)

	result, err := h.playerService.Submit(c.Request.Context(), c.GetString(userIDKey), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Retry starts a fresh attempt on the same quiz
// @Summary Retry attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param retry body services.RetryRequest false "Retry options"
// @Success 201 {object} attempt.View
// @Router /attempts/{id}/retry [post]
func (h *AttemptHandler) Retry(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.RetryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
			return
		}
	}

	view, err := h.playerService.Retry(c.Request.Context(), c.GetString(userIDKey), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// CloseAttempt abandons a live attempt and cancels its timers
// @Summary Close attempt
// @Tags attempts
// @Param id path string true "Attempt ID"
// @Success 204
// @Router /attempts/{id} [delete]
func (h *AttemptHandler) CloseAttempt(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.playerService.Close(c.Request.Context(), c.GetString(userIDKey), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadReport exports the attempt's audit as an Excel workbook
// @Summary Attempt audit report
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Attempt ID"
// @Success 200 {file} file
// @Router /attempts/{id}/report [get]
func (h *AttemptHandler) DownloadReport(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	data, err := h.reportService.AttemptReport(c.Request.Context(), c.GetString(userIDKey), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attempt_%s.xlsx", id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

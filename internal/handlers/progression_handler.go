package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
)

type ProgressionHandler struct {
	BaseHandler
	progressionService services.ProgressionService
}

func NewProgressionHandler(progressionService services.ProgressionService, logger utils.Logger) *ProgressionHandler {
	return &ProgressionHandler{
		BaseHandler:        NewBaseHandler(logger),
		progressionService: progressionService,
	}
}

// ModuleAccess reports whether the learner may enter a module
// @Summary Module gate decision
// @Tags progression
// @Produce json
// @Param training_id path string true "Training ID"
// @Param index path int true "Module position"
// @Success 200 {object} progression.Decision
// @Router /trainings/{training_id}/modules/{index}/access [get]
func (h *ProgressionHandler) ModuleAccess(c *gin.Context) {
	trainingID := ParseStringIDParam(c, "training_id")
	if trainingID == "" {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	decision, err := h.progressionService.CanEnterModule(c.Request.Context(), c.GetString(userIDKey), trainingID, index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// FinalExamAccess reports whether the learner may take the final exam
// @Router /trainings/{training_id}/final-exam/access [get]
func (h *ProgressionHandler) FinalExamAccess(c *gin.Context) {
	trainingID := ParseStringIDParam(c, "training_id")
	if trainingID == "" {
		return
	}

	decision, err := h.progressionService.CanEnterFinalExam(c.Request.Context(), c.GetString(userIDKey), trainingID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// @Router /trainings/{training_id}/outcomes [get]
func (h *ProgressionHandler) Outcomes(c *gin.Context) {
	trainingID := ParseStringIDParam(c, "training_id")
	if trainingID == "" {
		return
	}

	outcomes, err := h.progressionService.Outcomes(c.Request.Context(), c.GetString(userIDKey), trainingID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// Certificate returns the learner's certificate, or 404 until the training
// is complete
// @Summary Get certificate
// @Tags progression
// @Produce json
// @Param training_id path string true "Training ID"
// @Success 200 {object} models.Certificate
// @Failure 404 {object} ErrorResponse
// @Router /trainings/{training_id}/certificate [get]
func (h *ProgressionHandler) Certificate(c *gin.Context) {
	trainingID := ParseStringIDParam(c, "training_id")
	if trainingID == "" {
		return
	}

	cert, err := h.progressionService.GetCertificate(c.Request.Context(), c.GetString(userIDKey), c.GetString(userNameKey), trainingID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

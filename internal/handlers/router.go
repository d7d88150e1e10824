package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
	ws "github.com/SAP-F-2025/training-assessment-service/internal/websocket"
)

type HandlerManager struct {
	attemptHandler     *AttemptHandler
	progressionHandler *ProgressionHandler
	websocketHandler   *WebSocketHandler
}

func NewHandlerManager(
	playerService services.PlayerService,
	progressionService services.ProgressionService,
	reportService services.ReportService,
	hub *ws.Hub,
	allowedOrigins []string,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:     NewAttemptHandler(playerService, reportService, logger),
		progressionHandler: NewProgressionHandler(progressionService, logger),
		websocketHandler:   NewWebSocketHandler(hub, playerService, allowedOrigins, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1", RequireUser())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.DELETE("/:id", hm.attemptHandler.CloseAttempt)
			attempts.POST("/:id/signals", hm.attemptHandler.RecordSignal)
			attempts.PUT("/:id/answer", hm.attemptHandler.Answer)
			attempts.POST("/:id/next", hm.attemptHandler.Next)
			attempts.POST("/:id/navigate", hm.attemptHandler.Navigate)
			attempts.POST("/:id/submit", hm.attemptHandler.Submit)
			attempts.POST("/:id/retry", hm.attemptHandler.Retry)
			attempts.GET("/:id/report", hm.attemptHandler.DownloadReport)
			attempts.GET("/:id/ws", hm.websocketHandler.HandleWebSocket)
		}

		trainings := v1.Group("/trainings/:training_id")
		{
			trainings.GET("/modules/:index/access", hm.progressionHandler.ModuleAccess)
			trainings.GET("/final-exam/access", hm.progressionHandler.FinalExamAccess)
			trainings.GET("/outcomes", hm.progressionHandler.Outcomes)
			trainings.GET("/certificate", hm.progressionHandler.Certificate)
		}
	}
}

package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/training-assessment-service/internal/services"
	"github.com/SAP-F-2025/training-assessment-service/internal/utils"
	ws "github.com/SAP-F-2025/training-assessment-service/internal/websocket"
)

type WebSocketHandler struct {
	BaseHandler
	hub           *ws.Hub
	playerService services.PlayerService
	upgrader      websocket.Upgrader
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty.
func NewWebSocketHandler(hub *ws.Hub, playerService services.PlayerService, allowedOrigins []string, logger utils.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		BaseHandler:   NewBaseHandler(logger),
		hub:           hub,
		playerService: playerService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket upgrades to the live attempt channel. Ownership is checked
// before the upgrade so failures get a normal HTTP status.
// @Router /attempts/{id}/ws [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	learnerID := c.GetString(userIDKey)

	if _, err := h.playerService.Snapshot(c.Request.Context(), learnerID, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.LogError(c, err, "Failed to upgrade connection", "attempt_id", id)
		return
	}

	client := ws.NewClient(h.hub, conn, learnerID, id)
	if !h.hub.Add(client) {
		h.log(c).Warn("WebSocket hub stopped, dropping connection", "attempt_id", id)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

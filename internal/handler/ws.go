package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hail/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades connections and hands them to the notification hub.
type WSHandler struct {
	hub *ws.Hub
	log *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *ws.Hub, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// Connect handles GET /ws?user_id=...&role=rider|driver
func (h *WSHandler) Connect(c *gin.Context) {
	userID := c.Query("user_id")
	role := c.Query("role")
	if userID == "" || (role != "rider" && role != "driver") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id and role (rider|driver) are required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID, role, h.log)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

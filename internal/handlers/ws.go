package handlers

import (
	"log"
	"net/http"

	"aim-edu-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleExamMonitor godoc
// @Summary      WebSocket stream of proctoring events for an exam
// @Description  Connect via WebSocket to watch live proctoring activity
// @Tags         websocket
// @Param        id path int true "Exam ID"
// @Router       /ws/exam/{id} [get]
func (h *WSHandler) HandleExamMonitor(c *gin.Context) {
	examID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid exam id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	h.hub.AddConnection(examID, conn)
	defer h.hub.RemoveConnection(examID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

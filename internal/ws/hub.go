package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans proctoring activity out to teachers watching an exam's live
// monitor page. Connections are grouped by exam ID.
type Hub struct {
	mu    sync.RWMutex
	exams map[uint]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		exams: make(map[uint]map[*websocket.Conn]bool),
	}
}

func (h *Hub) AddConnection(examID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.exams[examID] == nil {
		h.exams[examID] = make(map[*websocket.Conn]bool)
	}
	h.exams[examID][conn] = true
	log.Printf("ws: monitor connected to exam %d (total: %d)", examID, len(h.exams[examID]))
}

func (h *Hub) RemoveConnection(examID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.exams[examID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.exams, examID)
		}
		log.Printf("ws: monitor disconnected from exam %d", examID)
	}
}

func (h *Hub) Broadcast(examID uint, message WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.exams[examID]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws: write error: %v", err)
			conn.Close()
			delete(conns, conn)
		}
	}
}

// BroadcastProctorEvent pushes one proctoring event to the exam's monitors.
func (h *Hub) BroadcastProctorEvent(examID uint, payload interface{}) {
	h.Broadcast(examID, WSMessage{Type: "proctor_event", Data: payload})
}

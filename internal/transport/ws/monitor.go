package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/proctor/internal/models"
	"github.com/your-org/proctor/internal/observability"
)

var monitorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1 << 20,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type monitorClient struct {
	conn *websocket.Conn
	send chan []byte
}

// monitorEvent is the wire shape broadcast to supervisor dashboards: a
// verdict tagged with the session it came from.
type monitorEvent struct {
	SessionID string         `json:"session_id"`
	Verdict   models.Verdict `json:"verdict"`
}

// MonitorHub fans every session's verdict out to connected supervisor
// clients through a register/unregister/broadcast channel pattern. Unlike
// the examinee-facing stream it makes no per-session ordering guarantee —
// it is an observability surface, not the transport of record.
type MonitorHub struct {
	mu         sync.RWMutex
	clients    map[*monitorClient]bool
	broadcast  chan []byte
	register   chan *monitorClient
	unregister chan *monitorClient
}

func NewMonitorHub() *MonitorHub {
	h := &MonitorHub{
		clients:    make(map[*monitorClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *monitorClient),
		unregister: make(chan *monitorClient),
	}
	go h.run()
	return h
}

func (h *MonitorHub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					go func(c *monitorClient) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans one session's verdict out to every connected monitor
// client. A no-op with zero clients connected avoids marshaling on the hot
// path when nobody is watching.
func (h *MonitorHub) Broadcast(sessionID string, verdict models.Verdict) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	data, err := json.Marshal(monitorEvent{SessionID: sessionID, Verdict: verdict})
	if err != nil {
		slog.Error("marshal monitor event", "error", err)
		return
	}
	h.broadcast <- data
}

// Handle upgrades a supervisor connection. Monitor clients are read-only:
// the read loop exists solely to detect disconnection.
func (h *MonitorHub) Handle(c *gin.Context) {
	conn, err := monitorUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("monitor ws upgrade failed", "error", err)
		return
	}

	client := &monitorClient{conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *monitorClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *monitorClient) readPump(h *MonitorHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

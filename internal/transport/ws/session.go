// Package ws holds the WebSocket endpoints: the examinee-facing
// full-duplex proctoring stream and the supervisor-facing monitor fan-out.
package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/proctor/internal/frameio"
	"github.com/your-org/proctor/internal/models"
	"github.com/your-org/proctor/internal/observability"
	"github.com/your-org/proctor/internal/pipeline"
)

var proctorUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1 << 20, // verdicts carry a base64 JPEG
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProctorHandler upgrades inbound connections to the "/ws/proctor" stream:
// one session per connection, frames processed strictly sequentially so
// per-session verdict ordering matches inbound order.
type ProctorHandler struct {
	orchestrator *pipeline.Orchestrator
	monitor      *MonitorHub
}

// NewProctorHandler builds a handler around an already-initialized
// orchestrator. monitor may be nil — verdicts are then not fanned out.
func NewProctorHandler(o *pipeline.Orchestrator, monitor *MonitorHub) *ProctorHandler {
	return &ProctorHandler{orchestrator: o, monitor: monitor}
}

// Handle runs the session's full lifecycle: upgrade, assign a session key,
// loop receiving frames until the peer disconnects, then dispose of the
// session buffer.
func (h *ProctorHandler) Handle(c *gin.Context) {
	conn, err := proctorUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("proctor ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionKey := uuid.New().String()
	h.orchestrator.CreateSession(sessionKey)
	observability.WSConnections.Inc()
	defer func() {
		h.orchestrator.DropSession(sessionKey)
		observability.WSConnections.Dec()
	}()

	slog.Debug("proctor session connected", "session_id", sessionKey)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("proctor session disconnected", "session_id", sessionKey, "error", err)
			return
		}

		verdict, procErr := h.processMessage(sessionKey, msg)
		if procErr != nil {
			errFrame, _ := json.Marshal(models.ErrorFrame{Error: procErr.Error()})
			if err := conn.WriteMessage(websocket.TextMessage, errFrame); err != nil {
				return
			}
			continue
		}

		out, err := json.Marshal(verdict)
		if err != nil {
			slog.Error("marshal verdict", "error", err, "session_id", sessionKey)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}

		if h.monitor != nil {
			h.monitor.Broadcast(sessionKey, verdict)
		}
	}
}

// processMessage parses one inbound text frame, decodes its JPEG payload,
// and runs it through the orchestrator. Decode failures are returned as
// plain errors — the caller turns them into "{"error": ...}" frames without
// advancing frame_count (the increment lives inside Process, which is never
// reached on a decode failure).
func (h *ProctorHandler) processMessage(sessionKey string, msg []byte) (models.Verdict, error) {
	var inbound models.InboundFrame
	if err := json.Unmarshal(msg, &inbound); err != nil {
		return models.Verdict{}, fmt.Errorf("invalid message: %w", err)
	}

	raw := stripDataURIPrefix(inbound.Frame)
	jpegBytes, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(jpegBytes) == 0 {
		return models.Verdict{}, fmt.Errorf("empty frame payload")
	}

	mat, err := frameio.Decode(jpegBytes)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("decode jpeg: %w", err)
	}
	defer mat.Close()

	return h.orchestrator.Process(sessionKey, mat, false)
}

func stripDataURIPrefix(s string) string {
	if idx := strings.Index(s, ";base64,"); idx != -1 {
		return s[idx+len(";base64,"):]
	}
	return s
}

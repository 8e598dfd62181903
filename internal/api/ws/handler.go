// Package ws streams shell state snapshots to connected front-ends.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/core"
	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the CORS layer
	},
}

// envelope is the wire shape for outbound messages.
type envelope struct {
	Type  string      `json:"type"`
	State *core.State `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Handler upgrades connections and pushes a snapshot after every state
// change. Each connection gets the full current state on connect, so a
// reconnecting client never needs a separate sync step.
type Handler struct {
	core    *core.Core
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket handler over the core.
func NewHandler(c *core.Core, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{core: c, logger: logger, metrics: metrics}
}

// HandleConnection handles the WebSocket upgrade and the connection's
// lifetime.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}

	updates := make(chan core.State, 1)
	dispose := h.core.Subscribe(func(s core.State) {
		pushLatest(updates, s)
	})
	done := make(chan struct{})

	go h.writePump(conn, updates, done)
	h.readPump(conn)

	close(done)
	dispose()
	conn.Close()
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
}

// pushLatest replaces any queued snapshot so a slow reader picks up the
// newest state instead of a backlog of intermediate ones.
func pushLatest(updates chan core.State, s core.State) {
	for {
		select {
		case updates <- s:
			return
		default:
			select {
			case <-updates:
			default:
			}
		}
	}
}

// writePump owns all writes on the connection: the initial snapshot,
// coalesced updates, and keepalive pings.
func (h *Handler) writePump(conn *websocket.Conn, updates <-chan core.State, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	initial := h.core.State()
	if err := h.write(conn, envelope{Type: "state", State: &initial}); err != nil {
		return
	}

	for {
		select {
		case state := <-updates:
			if err := h.write(conn, envelope{Type: "state", State: &state}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump drains the connection until the client goes away. The state
// stream is one-way; commands arrive over the REST surface.
func (h *Handler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if h.metrics != nil {
			msgType, _ := msg["type"].(string)
			h.metrics.RecordWSMessage("in", msgType)
		}
		if msgType, _ := msg["type"].(string); msgType == "ping" {
			h.write(conn, envelope{Type: "pong"})
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, env envelope) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", env.Type)
	}
	return nil
}

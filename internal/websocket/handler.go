package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pollcast/pkg/types"
)

// Dispatcher receives connection lifecycle and inbound frames.
// The hub implements it so every event is serialized onto one goroutine.
type Dispatcher interface {
	Connect(connID string)
	Disconnect(connID string)
	Dispatch(connID string, msg *types.Inbound)
}

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: Classroom clients are served from any origin
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests and pumps frames into the dispatcher
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from business logic;
// the handler never interprets events, it only frames and forwards them
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	settings   Settings
	logger     *slog.Logger
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, dispatcher Dispatcher, settings Settings, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     logger,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// TECHNICAL DISCOVERY: Server-assigned ids are the only identity a client has
	wsConn := NewConnection(conn, uuid.NewString(), h.settings)

	if err := h.registry.Register(wsConn); err != nil {
		h.logger.Error("failed to register connection", "conn", wsConn.ID(), "error", err)
		_ = wsConn.Close()
		return
	}

	h.logger.Debug("connection attached", "conn", wsConn.ID(), "remote", r.RemoteAddr)
	h.dispatcher.Connect(wsConn.ID())

	h.handleConnection(wsConn)
}

// handleConnection runs the read pump with heartbeat monitoring
// ARCHITECTURAL DISCOVERY: Single goroutine per connection handles message reading,
// a companion goroutine sends pings
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// FUNCTIONAL DISCOVERY: Detach before reporting the disconnect so no
		// broadcast triggered by it targets the dead connection
		h.registry.Unregister(conn)
		_ = conn.Close()
		h.dispatcher.Disconnect(conn.ID())
	}()

	ws := conn.conn
	if h.settings.MaxMessageBytes > 0 {
		ws.SetReadLimit(h.settings.MaxMessageBytes)
	}

	readTimeout := h.settings.ReadTimeout
	if readTimeout > 0 {
		if err := ws.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			h.logger.Warn("failed to set read deadline", "conn", conn.ID(), "error", err)
			return
		}
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	if h.settings.PingInterval > 0 {
		ticker := time.NewTicker(h.settings.PingInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ticker.C:
					deadline := time.Now().Add(h.settings.WriteTimeout)
					if err := ws.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
						return
					}
				case <-conn.Done():
					return
				}
			}
		}()
	}

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "conn", conn.ID(), "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var msg types.Inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			// FUNCTIONAL DISCOVERY: Malformed frames are dropped, the connection stays open
			h.logger.Debug("dropping malformed frame", "conn", conn.ID(), "bytes", len(data))
			continue
		}

		h.dispatcher.Dispatch(conn.ID(), &msg)
	}
}

package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"classsync/internal/config"
	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// All origins accepted; deployments fronting multiple origins should
		// tighten this.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher receives decoded frames from connection read pumps. The hub
// implements it; declaring it here keeps the dependency pointing inward.
type Dispatcher interface {
	Dispatch(conn interfaces.Connection, envelope *types.Envelope) error
}

// Handler upgrades HTTP requests to WebSocket connections, authenticates
// them, and runs each connection's read pump.
type Handler struct {
	registry      *Registry
	authenticator interfaces.Authenticator
	dispatcher    Dispatcher
	wsConfig      *config.WebSocketConfig
	log           *zap.SugaredLogger
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *Registry, authenticator interfaces.Authenticator, dispatcher Dispatcher, wsConfig *config.WebSocketConfig, log *zap.SugaredLogger) *Handler {
	return &Handler{
		registry:      registry,
		authenticator: authenticator,
		dispatcher:    dispatcher,
		wsConfig:      wsConfig,
		log:           log,
	}
}

// HandleWebSocket validates the request, resolves the token into an identity,
// upgrades the connection and hands it to the read pump. Validation happens
// before the upgrade so rejected requests get proper HTTP status codes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	classroomID := r.URL.Query().Get("classroom_id")

	if token == "" || classroomID == "" {
		http.Error(w, "Missing required query parameters: token, classroom_id", http.StatusBadRequest)
		return
	}
	if !types.IsValidClassID(classroomID) {
		http.Error(w, "Invalid classroom_id format", http.StatusBadRequest)
		return
	}

	identity, err := h.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	wsConn := NewConnection(conn, identity.UserID, identity.DisplayName, identity.PhotoURL,
		classroomID, h.wsConfig.BufferSize, h.wsConfig.WriteTimeout)

	if err := h.registry.Track(wsConn); err != nil {
		h.log.Errorw("failed to track connection", "error", err)
		_ = wsConn.Close()
		return
	}

	h.log.Infow("connection established",
		"userId", identity.UserID,
		"displayName", identity.DisplayName,
		"classroomId", classroomID,
		"connectionId", wsConn.ConnectionID())

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump with ping/pong liveness. Cleanup is
// unconditional: any exit path removes the connection from its room, so a
// disconnected session receives no further fan-out.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.Leave(conn)
		_ = conn.Close()
		h.log.Infow("connection closed",
			"userId", conn.UserID(),
			"connectionId", conn.ConnectionID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout)); err != nil {
		h.log.Warnw("failed to set read deadline", "error", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout))
	})

	ticker := time.NewTicker(h.wsConfig.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.wsConfig.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warnw("WebSocket read error", "userId", conn.UserID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var envelope types.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			h.log.Warnw("dropping unparseable frame",
				"userId", conn.UserID(),
				"connectionId", conn.ConnectionID(),
				"error", err)
			continue
		}

		if err := h.dispatcher.Dispatch(conn, &envelope); err != nil {
			h.log.Warnw("dispatch failed",
				"event", envelope.Event,
				"userId", conn.UserID(),
				"error", err)
		}
	}
}

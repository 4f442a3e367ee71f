package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

const commandTimeout = 5 * time.Second

// Access decides whether a user may join a session in a role.
type Access interface {
	ValidateSessionAccess(sessionID, userID, role string) error
}

// Registrar takes ownership of upgraded connections. Registration must send
// the session's current snapshot before any later event.
type Registrar interface {
	RegisterConnection(conn *Connection) error
	UnregisterConnection(conn *Connection)
}

// Handler upgrades /ws requests and runs the per-connection read loop.
type Handler struct {
	access    Access
	registrar Registrar
	router    interfaces.CommandRouter
	cfg       Config
	log       *logger.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(access Access, registrar Registrar, router interfaces.CommandRouter, cfg Config, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		access:    access,
		registrar: registrar,
		router:    router,
		cfg:       cfg.withDefaults(),
		log:       log.With("service", "WebSocketHandler"),
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// HandleWebSocket serves GET /ws?session_id=&user_id=&role=.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	role := q.Get("role")
	sessionID := q.Get("session_id")

	if userID == "" || role == "" || sessionID == "" {
		http.Error(w, "Missing required query parameters: session_id, user_id, role", http.StatusBadRequest)
		return
	}
	if !types.IsValidUserID(userID) {
		http.Error(w, "Invalid user_id format", http.StatusBadRequest)
		return
	}
	if role != interfaces.RoleController && role != interfaces.RoleViewer {
		http.Error(w, "Invalid role: must be 'controller' or 'viewer'", http.StatusBadRequest)
		return
	}

	if err := h.access.ValidateSessionAccess(sessionID, userID, role); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrSessionNotFound):
			http.Error(w, "Session not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrUnauthorized):
			http.Error(w, "Not authorized to control this session", http.StatusForbidden)
		default:
			h.log.Warn("session validation failed", "session_id", sessionID, "user_id", userID, "error", err)
			http.Error(w, "Session validation failed", http.StatusInternalServerError)
		}
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(ws, h.cfg)
	if err := conn.SetCredentials(userID, role, sessionID); err != nil {
		_ = conn.Close()
		return
	}
	if err := h.registrar.RegisterConnection(conn); err != nil {
		h.log.Warn("failed to register connection", "session_id", sessionID, "user_id", userID, "error", err)
		_ = conn.Close()
		return
	}

	h.log.Debug("connection opened", "session_id", sessionID, "user_id", userID, "role", role)
	go h.handleConnection(conn)
}

// handleConnection owns the read side and the heartbeat until the peer goes
// away.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registrar.UnregisterConnection(conn)
		_ = conn.Close()
		h.log.Debug("connection closed", "session_id", conn.GetSessionID(), "user_id", conn.GetUserID())
	}()

	ws := conn.conn
	if err := ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "user_id", conn.GetUserID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleFrame(conn, data)
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// handleFrame applies one command frame and replies with the resulting
// snapshot or an error event.
func (h *Handler) handleFrame(conn *Connection, data []byte) {
	var cmd types.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.reply(conn, types.PlaybackEvent{
			Type:      types.EventError,
			SessionID: conn.GetSessionID(),
			Message:   ErrInvalidCommand.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	snap, err := h.router.RouteCommand(ctx, conn, cmd)
	ev := types.PlaybackEvent{
		Type:      types.EventState,
		SessionID: conn.GetSessionID(),
		Snapshot:  snap,
		Timestamp: time.Now(),
	}
	if err != nil {
		ev.Type = types.EventError
		ev.Message = err.Error()
		h.log.Debug("command rejected", "session_id", conn.GetSessionID(), "user_id", conn.GetUserID(), "command", cmd.Type, "error", err)
	}
	h.reply(conn, ev)
}

func (h *Handler) reply(conn *Connection, ev types.PlaybackEvent) {
	if err := conn.WriteJSON(ev); err != nil {
		h.log.Debug("failed to send reply", "user_id", conn.GetUserID(), "error", err)
	}
}

// Package hub delivers playback events to connected clients and to other
// instances.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"lessoncast/internal/logger"
	"lessoncast/internal/realtime"
	"lessoncast/internal/websocket"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

const publishTimeout = 2 * time.Second

// Sessions is the part of the session manager the hub consults.
type Sessions interface {
	GetSession(sessionID string) (types.PlaybackSnapshot, error)
	ValidateSessionAccess(sessionID, userID, role string) error
}

// Hub owns delivery. Local events, remote events and connection lifecycle
// all pass through one goroutine, so a newly registered connection gets its
// snapshot before any later event for its session.
type Hub struct {
	eventChannel      chan types.PlaybackEvent
	remoteChannel     chan types.PlaybackEvent
	registerChannel   chan *websocket.Connection
	unregisterChannel chan *websocket.Connection
	shutdownChannel   chan struct{}
	done              chan struct{}

	registry *websocket.Registry
	sessions Sessions
	bus      realtime.Bus
	log      *logger.Logger

	remoteMu sync.RWMutex
	remote   map[string]types.PlaybackSnapshot

	running bool
	mu      sync.RWMutex
}

var _ websocket.Registrar = (*Hub)(nil)

// NewHub creates a hub. bus may be nil on a single instance.
func NewHub(registry *websocket.Registry, sessions Sessions, bus realtime.Bus, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		eventChannel:      make(chan types.PlaybackEvent, 1000),
		remoteChannel:     make(chan types.PlaybackEvent, 1000),
		registerChannel:   make(chan *websocket.Connection, 100),
		unregisterChannel: make(chan *websocket.Connection, 100),
		shutdownChannel:   make(chan struct{}),
		done:              make(chan struct{}),
		registry:          registry,
		sessions:          sessions,
		bus:               bus,
		log:               log.With("service", "Hub"),
		remote:            make(map[string]types.PlaybackSnapshot),
	}
}

// Start runs the hub loop in the background.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	if h.bus != nil {
		if err := h.bus.StartForwarder(ctx, h.deliverRemote); err != nil {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return err
		}
	}

	h.log.Info("starting hub")
	go h.run(ctx)
	return nil
}

// Run starts the hub and blocks until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	<-h.done
	return nil
}

// Stop ends the hub loop.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

// Done is closed when the loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Publish queues a local session event. It is a playback observer and never
// blocks; events are dropped when the hub is saturated.
func (h *Hub) Publish(ev types.PlaybackEvent) {
	select {
	case h.eventChannel <- ev:
	default:
		h.log.Warn("dropping playback event", "session_id", ev.SessionID, "type", ev.Type, "error", ErrEventChannelFull)
	}
}

// deliverRemote queues an event forwarded from another instance.
func (h *Hub) deliverRemote(ev types.PlaybackEvent) {
	select {
	case h.remoteChannel <- ev:
	default:
		h.log.Warn("dropping remote playback event", "session_id", ev.SessionID, "origin", ev.Origin)
	}
}

// RegisterConnection queues conn; the hub registers it and sends the
// session's current snapshot.
func (h *Hub) RegisterConnection(conn *websocket.Connection) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}
	select {
	case h.registerChannel <- conn:
		return nil
	default:
		return ErrRegisterChannelFull
	}
}

// UnregisterConnection queues removal of conn, or removes it directly when
// the hub is not running or is saturated.
func (h *Hub) UnregisterConnection(conn *websocket.Connection) {
	if h.isRunning() {
		select {
		case h.unregisterChannel <- conn:
			return
		default:
		}
	}
	h.registry.UnregisterConnection(conn)
}

// ValidateSessionAccess defers to the session manager and additionally lets
// viewers join sessions hosted on another instance.
func (h *Hub) ValidateSessionAccess(sessionID, userID, role string) error {
	err := h.sessions.ValidateSessionAccess(sessionID, userID, role)
	if errors.Is(err, interfaces.ErrSessionNotFound) && role == interfaces.RoleViewer {
		if _, ok := h.remoteSnapshot(sessionID); ok {
			return nil
		}
	}
	return err
}

func (h *Hub) remoteSnapshot(sessionID string) (types.PlaybackSnapshot, bool) {
	h.remoteMu.RLock()
	defer h.remoteMu.RUnlock()
	snap, ok := h.remote[sessionID]
	return snap, ok
}

// Stats reports connection and remote session counts.
func (h *Hub) Stats() map[string]int {
	stats := h.registry.GetStats()
	h.remoteMu.RLock()
	stats["remote_sessions"] = len(h.remote)
	h.remoteMu.RUnlock()
	return stats
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.log.Info("hub stopped")

	for {
		select {
		case ev := <-h.eventChannel:
			h.handleLocal(ctx, ev)

		case ev := <-h.remoteChannel:
			h.handleRemote(ev)

		case conn := <-h.registerChannel:
			h.handleRegistration(conn)

		case conn := <-h.unregisterChannel:
			h.registry.UnregisterConnection(conn)

		case <-h.shutdownChannel:
			return

		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handleLocal(ctx context.Context, ev types.PlaybackEvent) {
	h.broadcast(ev)

	if h.bus != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		if err := h.bus.Publish(pubCtx, ev); err != nil {
			h.log.Warn("failed to publish playback event", "session_id", ev.SessionID, "error", err)
		}
		cancel()
	}
}

func (h *Hub) handleRemote(ev types.PlaybackEvent) {
	h.remoteMu.Lock()
	if ev.Type == types.EventClosed {
		delete(h.remote, ev.SessionID)
	} else {
		h.remote[ev.SessionID] = ev.Snapshot
	}
	h.remoteMu.Unlock()

	h.broadcast(ev)
}

// broadcast writes ev to every connection of its session. A closed session
// also drops its connections.
func (h *Hub) broadcast(ev types.PlaybackEvent) {
	var conns []*websocket.Connection
	if ev.Type == types.EventClosed {
		conns = h.registry.RemoveSession(ev.SessionID)
	} else {
		conns = h.registry.GetSessionConnections(ev.SessionID)
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(ev); err != nil {
			h.log.Debug("failed to deliver playback event", "session_id", ev.SessionID, "user_id", conn.GetUserID(), "error", err)
		}
		if ev.Type == types.EventClosed {
			conn.CloseAfterFlush()
		}
	}
}

func (h *Hub) handleRegistration(conn *websocket.Connection) {
	if conn == nil {
		return
	}
	if err := h.registry.RegisterConnection(conn); err != nil {
		h.log.Warn("connection registration failed", "user_id", conn.GetUserID(), "error", err)
		_ = conn.Close()
		return
	}

	sessionID := conn.GetSessionID()
	snap, err := h.sessions.GetSession(sessionID)
	if err != nil {
		var ok bool
		if snap, ok = h.remoteSnapshot(sessionID); !ok {
			h.log.Debug("session gone before registration", "session_id", sessionID)
			h.registry.UnregisterConnection(conn)
			_ = conn.WriteJSON(types.PlaybackEvent{
				Type:      types.EventClosed,
				SessionID: sessionID,
				Message:   interfaces.ErrSessionNotFound.Error(),
				Timestamp: time.Now(),
			})
			conn.CloseAfterFlush()
			return
		}
	}

	if err := conn.WriteJSON(types.PlaybackEvent{
		Type:      types.EventState,
		SessionID: sessionID,
		Snapshot:  snap,
		Timestamp: time.Now(),
	}); err != nil {
		h.log.Debug("failed to send initial snapshot", "session_id", sessionID, "error", err)
	}
	h.log.Debug("connection registered", "session_id", sessionID, "user_id", conn.GetUserID(), "role", conn.GetRole())
}

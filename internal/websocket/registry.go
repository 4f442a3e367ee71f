package websocket

import (
	"sort"
	"sync"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
)

// Registry tracks live connections by session and role. A user holds at most
// one connection per session and role; a newer one replaces the older.
type Registry struct {
	mu                 sync.RWMutex
	log                *logger.Logger
	connections        map[connKey]*Connection
	sessionControllers map[string]map[string]*Connection
	sessionViewers     map[string]map[string]*Connection
}

type connKey struct {
	sessionID string
	userID    string
	role      string
}

func keyOf(c *Connection) connKey {
	return connKey{sessionID: c.GetSessionID(), userID: c.GetUserID(), role: c.GetRole()}
}

func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		log:                log.With("service", "ConnectionRegistry"),
		connections:        make(map[connKey]*Connection),
		sessionControllers: make(map[string]map[string]*Connection),
		sessionViewers:     make(map[string]map[string]*Connection),
	}
}

// RegisterConnection adds conn, closing any connection it replaces.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}
	key := keyOf(conn)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[key]; ok && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				r.log.Debug("failed to close replaced connection", "user_id", key.userID, "error", err)
			}
		}()
	}
	r.connections[key] = conn

	byRole := r.roleMap(key.role)
	if byRole[key.sessionID] == nil {
		byRole[key.sessionID] = make(map[string]*Connection)
	}
	byRole[key.sessionID][key.userID] = conn
	return nil
}

// UnregisterConnection removes conn if it is still the registered instance.
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}
	key := keyOf(conn)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key, conn)
}

func (r *Registry) removeLocked(key connKey, conn *Connection) bool {
	registered, ok := r.connections[key]
	if !ok || registered != conn {
		return false
	}
	delete(r.connections, key)

	byRole := r.roleMap(key.role)
	if users, ok := byRole[key.sessionID]; ok {
		delete(users, key.userID)
		if len(users) == 0 {
			delete(byRole, key.sessionID)
		}
	}
	return true
}

func (r *Registry) roleMap(role string) map[string]map[string]*Connection {
	if role == interfaces.RoleController {
		return r.sessionControllers
	}
	return r.sessionViewers
}

// GetSessionConnections returns every connection watching sessionID,
// controllers first.
func (r *Registry) GetSessionConnections(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := collect(r.sessionControllers[sessionID])
	return append(out, collect(r.sessionViewers[sessionID])...)
}

func (r *Registry) GetSessionControllers(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.sessionControllers[sessionID])
}

func (r *Registry) GetSessionViewers(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.sessionViewers[sessionID])
}

// RemoveSession unregisters every connection of sessionID and returns them.
func (r *Registry) RemoveSession(sessionID string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := append(collect(r.sessionControllers[sessionID]), collect(r.sessionViewers[sessionID])...)
	for _, c := range conns {
		r.removeLocked(keyOf(c), c)
	}
	return conns
}

// GetStats returns registry statistics.
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make(map[string]struct{})
	for id := range r.sessionControllers {
		sessions[id] = struct{}{}
	}
	for id := range r.sessionViewers {
		sessions[id] = struct{}{}
	}
	return map[string]int{
		"total_connections": len(r.connections),
		"active_sessions":   len(sessions),
	}
}

func collect(users map[string]*Connection) []*Connection {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		out = append(out, users[id])
	}
	return out
}

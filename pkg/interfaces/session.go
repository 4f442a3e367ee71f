package interfaces

import (
	"context"

	"lessoncast/pkg/types"
)

// Connection roles.
const (
	RoleController = "controller"
	RoleViewer     = "viewer"
)

// SessionManager owns the live playback sessions.
type SessionManager interface {
	// CreateSession loads the lesson and starts a session at slide 0, stopped.
	// A load failure leaves no session behind.
	CreateSession(ctx context.Context, lessonID, userID string) (types.PlaybackSnapshot, error)

	GetSession(sessionID string) (types.PlaybackSnapshot, error)
	ListSessions() []types.PlaybackSnapshot

	Control(ctx context.Context, sessionID string, cmd types.Command) (types.PlaybackSnapshot, error)

	CloseSession(sessionID string) error

	// ValidateSessionAccess checks that userID may join sessionID with role.
	ValidateSessionAccess(sessionID, userID, role string) error
}

// CommandRouter validates and applies commands arriving over a realtime connection.
type CommandRouter interface {
	RouteCommand(ctx context.Context, sender Connection, cmd types.Command) (types.PlaybackSnapshot, error)
}

// Connection is a realtime client connection.
type Connection interface {
	// WriteJSON sends v to the client. Safe for concurrent use.
	WriteJSON(v interface{}) error
	Close() error

	GetUserID() string
	GetRole() string
	GetSessionID() string
	IsAuthenticated() bool
	SetCredentials(userID, role, sessionID string) error
}

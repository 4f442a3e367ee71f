package websocket

import "errors"

// Connection errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timed out")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry errors
var (
	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection must be authenticated before registration")
	ErrInvalidRole                = errors.New("invalid role: must be 'controller' or 'viewer'")
)

// Handler errors
var (
	ErrInvalidParameters = errors.New("invalid connection parameters")
	ErrInvalidCommand    = errors.New("command frame is not valid JSON")
)

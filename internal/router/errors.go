package router

import "errors"

var (
	ErrNotAuthenticated  = errors.New("connection is not authenticated")
	ErrNotController     = errors.New("only the controller may send playback commands")
	ErrRateLimitExceeded = errors.New("rate limit exceeded: 100 commands per minute")
)

// Package router applies transport commands arriving over realtime
// connections.
package router

import (
	"context"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Router implements interfaces.CommandRouter.
type Router struct {
	sessions    interfaces.SessionManager
	rateLimiter *RateLimiter
	log         *logger.Logger
}

var _ interfaces.CommandRouter = (*Router)(nil)

func NewRouter(sessions interfaces.SessionManager, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		sessions:    sessions,
		rateLimiter: NewRateLimiter(),
		log:         log.With("service", "CommandRouter"),
	}
}

// RateLimiter exposes the limiter so its cleanup can be scheduled.
func (r *Router) RateLimiter() *RateLimiter {
	return r.rateLimiter
}

// RouteCommand checks the sender and applies cmd to the sender's session.
// Rejected commands return the current snapshot when one exists.
func (r *Router) RouteCommand(ctx context.Context, sender interfaces.Connection, cmd types.Command) (types.PlaybackSnapshot, error) {
	if err := r.ValidateCommand(sender, cmd); err != nil {
		snap, _ := r.sessions.GetSession(sender.GetSessionID())
		return snap, err
	}

	snap, err := r.sessions.Control(ctx, sender.GetSessionID(), cmd)
	if err != nil {
		return snap, err
	}
	r.log.Debug("command applied", "session_id", sender.GetSessionID(), "user_id", sender.GetUserID(),
		"command", cmd.Type, "slide", snap.CurrentSlideIndex, "state", snap.State)
	return snap, nil
}

// ValidateCommand checks authentication, role, command shape and the rate
// limit, in that order.
func (r *Router) ValidateCommand(sender interfaces.Connection, cmd types.Command) error {
	if sender == nil || !sender.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if sender.GetRole() != interfaces.RoleController {
		return ErrNotController
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	if !r.rateLimiter.Allow(sender.GetUserID()) {
		return ErrRateLimitExceeded
	}
	return nil
}

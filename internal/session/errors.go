package session

import (
	"errors"

	"lessoncast/pkg/interfaces"
)

var (
	ErrSessionNotFound = interfaces.ErrSessionNotFound
	ErrUnauthorized    = interfaces.ErrUnauthorized
	ErrInvalidRole     = errors.New("invalid role: must be 'controller' or 'viewer'")
	ErrInvalidLessonID = errors.New("lesson ID is required")
	ErrManagerClosed   = errors.New("session manager is closed")
)

package interfaces

import "errors"

// Common errors shared across component boundaries.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrNotConfigured   = errors.New("collaborator not configured")
)

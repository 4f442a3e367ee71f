package playback

import "errors"

var (
	ErrSessionClosed = errors.New("playback session is closed")
	ErrNoAudio       = errors.New("no narration clip for slide")
	ErrLoadTimeout   = errors.New("narration clip load timed out")
)

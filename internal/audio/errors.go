package audio

import "errors"

var (
	ErrSlideOutOfRange = errors.New("slide index out of range")
	ErrUnknownLength   = errors.New("clip length unknown")
)

package tts

import "errors"

var (
	ErrTextTooShort = errors.New("text is too short")
	ErrTextTooLong  = errors.New("text is too long")
	ErrEmptyAudio   = errors.New("synthesizer returned no audio")
)

package assets

import "errors"

var (
	ErrInvalidKey     = errors.New("invalid asset key")
	ErrUnknownBackend = errors.New("unknown asset backend")
)

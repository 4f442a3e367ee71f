package types

import "errors"

var (
	ErrInvalidUserID      = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidLessonID    = errors.New("lesson ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidLessonOrder = errors.New("lesson order must be positive")
	ErrInvalidTitle       = errors.New("title must be 1-200 characters")
	ErrNoSlides           = errors.New("lesson must have at least one slide")
	ErrSlideNumbering     = errors.New("slide numbers must be 1-based and contiguous")
	ErrEmptySlideText     = errors.New("slide text cannot be empty")
	ErrNegativeDuration   = errors.New("slide duration cannot be negative")
	ErrInvalidTheme       = errors.New("invalid slide theme")
	ErrInvalidCommand     = errors.New("invalid playback command")
	ErrInvalidQuestion    = errors.New("question and answer are required")
	ErrInvalidDifficulty  = errors.New("difficulty must be easy, hard or mixed")
)

package quiz

import "errors"

var (
	ErrEmptyAnswer  = errors.New("answer is required")
	ErrInvalidCount = errors.New("question count must be between 1 and 20")
	ErrUnparsable   = errors.New("could not parse questions from model output")
	ErrNoModel      = errors.New("question generation requires a language model")
	ErrNoLessonText = errors.New("lesson has no text to ask about")
)

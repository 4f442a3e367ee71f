package pipeline

import "errors"

var (
	ErrClearWithSubset = errors.New("clearing audio cannot be combined with a slide subset")
	ErrUnknownSlide    = errors.New("requested slide does not exist")
	ErrQueueFull       = errors.New("generation queue is full")
	ErrRunnerStopped   = errors.New("generation runner is not running")
	ErrJobNotFound     = errors.New("job not found")
	ErrNoQuestions     = errors.New("lesson has no questions to narrate")
)

package types

import (
	"fmt"
	"regexp"
)

var (
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	lessonIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// IsValidUserID checks if a user ID meets format requirements.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidLessonID checks if a lesson ID meets format requirements.
func IsValidLessonID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return lessonIDRegex.MatchString(id)
}

// IsValidThemeKind reports whether k is a known theme. Empty is treated as plain.
func IsValidThemeKind(k ThemeKind) bool {
	switch k {
	case "", ThemePlain, ThemeIllustrated, ThemeFormula, ThemeExercise, ThemeSummary:
		return true
	default:
		return false
	}
}

// Validate checks the lesson and its slide numbering.
func (l *Lesson) Validate() error {
	if !IsValidLessonID(l.ID) {
		return ErrInvalidLessonID
	}
	if l.Order <= 0 {
		return ErrInvalidLessonOrder
	}
	if len(l.Title) < 1 || len(l.Title) > 200 {
		return ErrInvalidTitle
	}
	if len(l.Slides) == 0 {
		return ErrNoSlides
	}
	for i, s := range l.Slides {
		if s.Number != i+1 {
			return fmt.Errorf("%w: position %d has number %d", ErrSlideNumbering, i+1, s.Number)
		}
		if s.Text == "" {
			return fmt.Errorf("%w: slide %d", ErrEmptySlideText, s.Number)
		}
		if s.EstimatedDurationMs < 0 {
			return fmt.Errorf("%w: slide %d", ErrNegativeDuration, s.Number)
		}
		if !IsValidThemeKind(s.Theme.Kind) {
			return fmt.Errorf("%w: %q", ErrInvalidTheme, s.Theme.Kind)
		}
	}
	return nil
}

// Validate checks the command type. Index bounds are clamped by the session.
func (c Command) Validate() error {
	switch c.Type {
	case CommandPlay, CommandPause, CommandNext, CommandPrevious, CommandGoTo:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, c.Type)
	}
}

// IsValidDifficulty reports whether d is a known difficulty.
func IsValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyHard, DifficultyMixed:
		return true
	default:
		return false
	}
}

// Validate checks that a stored question can be graded.
func (q *Question) Validate() error {
	if q.Question == "" || q.CorrectAnswer == "" {
		return ErrInvalidQuestion
	}
	if q.Difficulty != DifficultyEasy && q.Difficulty != DifficultyHard {
		return ErrInvalidDifficulty
	}
	return nil
}

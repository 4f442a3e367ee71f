// Package seed imports a YAML course catalog into the lesson store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lessoncast/internal/logger"
	"lessoncast/internal/slides"
	"lessoncast/pkg/types"
)

var ErrEmptyCatalog = errors.New("catalog has no lessons")

// Catalog is the on-disk course description.
type Catalog struct {
	Lessons []LessonEntry `yaml:"lessons"`
}

// LessonEntry is a lesson plus optional raw narration and quiz questions.
// When Slides is empty, Text is split into slides.
type LessonEntry struct {
	types.Lesson `yaml:",inline"`
	Text         string          `yaml:"text"`
	Questions    []QuestionEntry `yaml:"questions"`
}

type QuestionEntry struct {
	Question      string `yaml:"question"`
	CorrectAnswer string `yaml:"correct_answer"`
	Difficulty    string `yaml:"difficulty"`
	Points        int    `yaml:"points"`
}

// Store is the part of the lesson store the importer writes to.
type Store interface {
	SaveLesson(ctx context.Context, lesson *types.Lesson) error
	SaveQuestions(ctx context.Context, lessonID string, questions []types.Question) error
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Lessons) == 0 {
		return nil, ErrEmptyCatalog
	}
	return &c, nil
}

// Apply saves every lesson of the catalog, splitting raw text and filling
// missing duration estimates. It stops at the first invalid lesson.
func Apply(ctx context.Context, store Store, c *Catalog, est slides.Estimator, log *logger.Logger) (int, error) {
	for i := range c.Lessons {
		entry := &c.Lessons[i]
		lesson := entry.Lesson
		if len(lesson.Slides) == 0 && entry.Text != "" {
			lesson.Slides = slides.Build(entry.Text, est)
		}
		for n := range lesson.Slides {
			if lesson.Slides[n].Number == 0 {
				lesson.Slides[n].Number = n + 1
			}
		}
		slides.FillEstimates(&lesson, est)

		if err := store.SaveLesson(ctx, &lesson); err != nil {
			return i, fmt.Errorf("lesson %q: %w", lesson.ID, err)
		}
		if len(entry.Questions) > 0 {
			if err := store.SaveQuestions(ctx, lesson.ID, entry.questions()); err != nil {
				return i, fmt.Errorf("lesson %q questions: %w", lesson.ID, err)
			}
		}
		log.Debug("lesson seeded", "lesson_id", lesson.ID, "slides", len(lesson.Slides), "questions", len(entry.Questions))
	}
	return len(c.Lessons), nil
}

func (e *LessonEntry) questions() []types.Question {
	out := make([]types.Question, 0, len(e.Questions))
	for i, q := range e.Questions {
		d := types.Difficulty(q.Difficulty)
		if d == "" {
			d = types.DifficultyEasy
		}
		points := q.Points
		if points <= 0 {
			points = 5
			if d == types.DifficultyHard {
				points = 15
			}
		}
		out = append(out, types.Question{
			ID:            i + 1,
			Question:      q.Question,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    d,
			Points:        points,
		})
	}
	return out
}

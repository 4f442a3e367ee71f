// Package quiz generates lesson questions with a language model and grades
// free-text answers.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Default point values by difficulty.
const (
	EasyPoints = 5
	HardPoints = 15
)

const (
	maxContentChars   = 8000
	maxQuestions      = 20
	generateMaxTokens = 4000
)

// Engine generates and grades questions. The model is optional; without
// it generation is unavailable and grading degrades to keyword matching.
type Engine struct {
	model interfaces.LanguageModel
	log   *logger.Logger
}

func New(model interfaces.LanguageModel, log *logger.Logger) *Engine {
	return &Engine{model: model, log: log.With("service", "Quiz")}
}

// HasModel reports whether a language model is configured.
func (e *Engine) HasModel() bool {
	return e.model != nil
}

type generatedQuestion struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	Difficulty    string `json:"difficulty"`
	Points        int    `json:"points"`
}

type generatedSet struct {
	Questions []generatedQuestion `json:"questions"`
}

// Generate asks the model for count questions about lesson. Questions are
// numbered from 1 and carry default points when the model omits them.
func (e *Engine) Generate(ctx context.Context, lesson *types.Lesson, count int, difficulty types.Difficulty) ([]types.Question, error) {
	if e.model == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoModel, interfaces.ErrNotConfigured)
	}
	if count < 1 || count > maxQuestions {
		return nil, ErrInvalidCount
	}
	if difficulty == "" {
		difficulty = types.DifficultyMixed
	}
	if !types.IsValidDifficulty(difficulty) {
		return nil, types.ErrInvalidDifficulty
	}

	content := lessonText(lesson)
	if content == "" {
		return nil, ErrNoLessonText
	}

	title := lesson.Title
	if title == "" {
		title = fmt.Sprintf("Lesson %d", lesson.Order)
	}
	text, err := e.model.Complete(ctx, generationPrompt(title, content, count, difficulty), generateMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("question generation: %w", err)
	}

	questions, err := ParseQuestions(text)
	if err != nil {
		return nil, err
	}
	e.log.Info("questions generated", "lesson_id", lesson.ID, "requested", count, "received", len(questions))
	return questions, nil
}

// ParseQuestions decodes the model's JSON reply, tolerating code fences.
func ParseQuestions(text string) ([]types.Question, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	var set generatedSet
	if err := json.Unmarshal([]byte(cleaned), &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	if len(set.Questions) == 0 {
		return nil, ErrUnparsable
	}

	out := make([]types.Question, 0, len(set.Questions))
	for _, g := range set.Questions {
		if strings.TrimSpace(g.Question) == "" || strings.TrimSpace(g.CorrectAnswer) == "" {
			continue
		}
		d := types.Difficulty(strings.ToLower(strings.TrimSpace(g.Difficulty)))
		if d != types.DifficultyHard {
			d = types.DifficultyEasy
		}
		points := g.Points
		if points <= 0 {
			points = EasyPoints
			if d == types.DifficultyHard {
				points = HardPoints
			}
		}
		out = append(out, types.Question{
			ID:            len(out) + 1,
			Question:      strings.TrimSpace(g.Question),
			CorrectAnswer: strings.TrimSpace(g.CorrectAnswer),
			Difficulty:    d,
			Points:        points,
		})
	}
	if len(out) == 0 {
		return nil, ErrUnparsable
	}
	return out, nil
}

func lessonText(lesson *types.Lesson) string {
	parts := make([]string, 0, len(lesson.Slides))
	for _, s := range lesson.Slides {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	content := strings.Join(parts, "\n\n")
	if r := []rune(content); len(r) > maxContentChars {
		content = string(r[:maxContentChars])
	}
	return content
}

func generationPrompt(title, content string, count int, difficulty types.Difficulty) string {
	var level string
	switch difficulty {
	case types.DifficultyEasy:
		level = `All questions should be BEGINNER level:
- Simple, direct questions about basic concepts
- Answers can be found directly in the lesson text
- No deep analysis required`
	case types.DifficultyHard:
		level = `All questions should be ADVANCED level:
- Complex questions requiring analysis and understanding of connections
- May require synthesis of information from different parts of the lesson
- Questions on application, comparison, generalization`
	default:
		level = `Create questions of MIXED difficulty:
- Half should be beginner level (easy): simple, direct questions
- Half should be advanced level (hard): complex, analytical questions`
	}

	return fmt.Sprintf(`You are an experienced teacher. Based on the following lesson, create %d quiz questions.

LESSON: %s

LESSON CONTENT:
%s

DIFFICULTY REQUIREMENTS:
%s

GENERAL REQUIREMENTS:
1. Create exactly %d questions
2. Questions should test understanding of key concepts from the lesson
3. Correct answers should be brief (1-3 sentences)
4. Points: easy = %d points, hard = %d points
5. Questions and answers must be in English

RESPONSE FORMAT (STRICTLY JSON, no text before or after):
{
  "questions": [
    {
      "question": "question text?",
      "correct_answer": "correct answer",
      "difficulty": "easy or hard",
      "points": %d or %d
    }
  ]
}`, count, title, content, level, count, EasyPoints, HardPoints, EasyPoints, HardPoints)
}

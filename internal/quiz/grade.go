package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"lessoncast/pkg/types"
)

// Grading thresholds, as percentages.
const (
	KeywordCorrectScore = 80
	ModelCorrectScore   = 70
	PartialScore        = 50
)

const gradeMaxTokens = 300

var (
	fenceRe     = regexp.MustCompile("```json\\s*|\\s*```")
	gradeJSONRe = regexp.MustCompile(`\{[^}]+\}`)
)

// Normalize lowercases s and drops everything but letters, digits and
// whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// KeywordScore is the percentage of the reference answer's words longer
// than two characters that appear anywhere in the answer.
func KeywordScore(reference, answer string) int {
	ref, ans := Normalize(reference), Normalize(answer)
	var words []string
	for _, w := range strings.Split(ref, " ") {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(ans, w) {
			matched++
		}
	}
	return int(math.Round(float64(matched) / float64(len(words)) * 100))
}

// Grade checks answer against q: exact match, then keyword overlap, then
// the language model when one is configured, then keyword overlap again at
// the partial threshold. A missing or failing model marks the result
// Degraded.
func (e *Engine) Grade(ctx context.Context, q types.Question, answer string) (types.GradeResult, error) {
	if strings.TrimSpace(answer) == "" {
		return types.GradeResult{}, ErrEmptyAnswer
	}

	if Normalize(q.CorrectAnswer) == Normalize(answer) {
		return e.finish(q, types.GradeResult{
			Correct:  true,
			Verdict:  types.VerdictCorrect,
			Score:    100,
			Method:   types.GradeExact,
			Feedback: "Excellent! Absolutely correct answer!",
		}), nil
	}

	keywords := KeywordScore(q.CorrectAnswer, answer)
	if keywords >= KeywordCorrectScore {
		return e.finish(q, types.GradeResult{
			Correct:  true,
			Verdict:  types.VerdictCorrect,
			Score:    keywords,
			Method:   types.GradeKeywords,
			Feedback: "Correct! You identified the main concepts.",
		}), nil
	}

	if e.model != nil {
		res, err := e.gradeWithModel(ctx, q, answer)
		if err == nil {
			return e.finish(q, res), nil
		}
		e.log.Warn("model grading failed, using keyword score", "question_id", q.ID, "error", err)
	}

	res := types.GradeResult{
		Verdict:  types.VerdictIncorrect,
		Score:    keywords,
		Method:   types.GradeFallback,
		Feedback: "Incorrect. Review the lesson material and try again.",
		Degraded: true,
	}
	if keywords >= PartialScore {
		res.Verdict = types.VerdictPartial
		res.Feedback = "Partially correct. Try to expand your answer."
	}
	return e.finish(q, res), nil
}

type modelGrade struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

func (e *Engine) gradeWithModel(ctx context.Context, q types.Question, answer string) (types.GradeResult, error) {
	ref := q.CorrectAnswer
	if ref == "" {
		ref = "Not provided"
	}
	prompt := fmt.Sprintf(`You are checking a student's answer to a question.

QUESTION: %s
REFERENCE ANSWER: %s
STUDENT'S ANSWER: %s

Evaluate the student's answer on a scale from 0 to 100:
- 80-100 = correct answer (student understood the essence)
- 50-79 = partially correct
- 0-49 = incorrect

Respond ONLY with JSON (no markdown):
{"score": number, "feedback": "brief comment in English up to 30 words"}`, q.Question, ref, answer)

	text, err := e.model.Complete(ctx, prompt, gradeMaxTokens)
	if err != nil {
		return types.GradeResult{}, err
	}
	text = fenceRe.ReplaceAllString(text, "")
	match := gradeJSONRe.FindString(text)
	if match == "" {
		return types.GradeResult{}, fmt.Errorf("no JSON object in grading reply")
	}
	var g modelGrade
	if err := json.Unmarshal([]byte(match), &g); err != nil {
		return types.GradeResult{}, fmt.Errorf("grading reply: %w", err)
	}
	if g.Score == nil {
		return types.GradeResult{}, fmt.Errorf("grading reply has no score")
	}

	score := int(math.Round(math.Max(0, math.Min(100, *g.Score))))
	res := types.GradeResult{
		Score:    score,
		Method:   types.GradeLLM,
		Feedback: g.Feedback,
		Verdict:  types.VerdictIncorrect,
	}
	if res.Feedback == "" {
		res.Feedback = "Answer checked"
	}
	switch {
	case score >= ModelCorrectScore:
		res.Correct = true
		res.Verdict = types.VerdictCorrect
	case score >= PartialScore:
		res.Verdict = types.VerdictPartial
	}
	return res, nil
}

func (e *Engine) finish(q types.Question, res types.GradeResult) types.GradeResult {
	res.EarnedPoints = Points(q, res)
	return res
}

// Points is the credit for a graded answer: the full value when correct,
// otherwise the value scaled by the score.
func Points(q types.Question, res types.GradeResult) int {
	if res.Correct {
		return q.Points
	}
	return int(math.Round(float64(q.Points) * float64(res.Score) / 100))
}

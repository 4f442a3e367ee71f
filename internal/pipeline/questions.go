package pipeline

import (
	"context"
	"fmt"

	"lessoncast/internal/audio"
	"lessoncast/internal/tts"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// QuestionRequest describes one question narration run.
type QuestionRequest struct {
	LessonID string `json:"lesson_id"`
	VoiceID  string `json:"voice_id,omitempty"`
	Clear    bool   `json:"clear,omitempty"`
}

// QuestionText is what gets spoken for the n-th question.
func QuestionText(n int, q types.Question) string {
	return fmt.Sprintf("Question %d. %s", n, q.Question)
}

// RunQuestions narrates the lesson's quiz questions in order, numbering them
// from 1 by position. Like Run, a failing question is reported and the run
// moves on.
func (s *Service) RunQuestions(ctx context.Context, req QuestionRequest) (*types.QuestionAudioReport, error) {
	if s.synth == nil {
		return nil, fmt.Errorf("%w: synthesizer", interfaces.ErrNotConfigured)
	}
	lesson, err := s.store.FetchLessonDetail(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, lesson.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	report := &types.QuestionAudioReport{
		LessonID:    lesson.ID,
		LessonOrder: lesson.Order,
		Items:       make([]types.QuestionAudioResult, 0, len(questions)),
		StartedAt:   s.now(),
	}
	log := s.log.With("lesson_id", lesson.ID)
	log.Info("question narration started", "questions", len(questions), "clear", req.Clear)

	if req.Clear {
		n, err := s.ClearQuestionAudio(ctx, lesson.Order)
		report.Cleared = n
		if err != nil {
			return nil, fmt.Errorf("clear question audio: %w", err)
		}
	}

	for i, q := range questions {
		n := i + 1
		if i > 0 {
			if err := sleep(ctx, s.opts.InterRequestDelay); err != nil {
				for k := n; k <= len(questions); k++ {
					report.Items = append(report.Items, types.QuestionAudioResult{
						Question: k,
						Key:      audio.QuestionKey(lesson.Order, k),
						Status:   types.ItemSkipped,
						Stage:    StageCancelled,
						Error:    err.Error(),
					})
				}
				break
			}
		}
		item := s.narrateQuestion(ctx, lesson.Order, n, q, req.VoiceID)
		if item.Status == types.ItemSucceeded {
			report.Succeeded++
		} else {
			report.Failed++
			log.Warn("question narration failed", "question", n, "stage", item.Stage, "error", item.Error)
		}
		report.Items = append(report.Items, item)
	}

	report.FinishedAt = s.now()
	log.Info("question narration finished", "succeeded", report.Succeeded, "failed", report.Failed,
		"took", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (s *Service) narrateQuestion(ctx context.Context, lessonOrder, n int, q types.Question, voiceID string) types.QuestionAudioResult {
	item := types.QuestionAudioResult{Question: n, Key: audio.QuestionKey(lessonOrder, n)}
	fail := func(stage string, err error) types.QuestionAudioResult {
		item.Status = types.ItemFailed
		item.Stage = stage
		item.Error = err.Error()
		return item
	}

	text := QuestionText(n, q)
	if _, err := tts.PrepareText(text); err != nil {
		return fail(StagePrepare, err)
	}
	data, err := s.Synthesize(ctx, text, voiceID)
	if err != nil {
		return fail(StageSynthesize, err)
	}
	url, err := s.assets.Upload(ctx, item.Key, data, audioContentType)
	if err != nil {
		return fail(StageUpload, err)
	}

	item.Status = types.ItemSucceeded
	item.AudioURL = url
	item.Bytes = len(data)
	return item
}

package interfaces

import (
	"context"

	"lessoncast/pkg/types"
)

// LessonStore supplies lesson content and records the side effects of
// playback and the admin pipeline.
type LessonStore interface {
	// FetchLessonList returns published lessons ordered by course position.
	FetchLessonList(ctx context.Context) ([]types.LessonSummary, error)

	// FetchLessonDetail returns a lesson with its slides, or ErrLessonNotFound.
	FetchLessonDetail(ctx context.Context, lessonID string) (*types.Lesson, error)

	// FetchLessonByOrder looks a lesson up by its course position.
	FetchLessonByOrder(ctx context.Context, order int) (*types.Lesson, error)

	// SaveLesson upserts a lesson and replaces its slides atomically.
	SaveLesson(ctx context.Context, lesson *types.Lesson) error

	SetSlideAudio(ctx context.Context, lessonID string, slideNumber int, audioURL string) error
	ClearSlideAudio(ctx context.Context, lessonID string) error

	SaveQuestions(ctx context.Context, lessonID string, questions []types.Question) error
	ListQuestions(ctx context.Context, lessonID string) ([]types.Question, error)

	MarkCompleted(ctx context.Context, completion *types.Completion) error
	ListCompletions(ctx context.Context, userID string) ([]types.Completion, error)

	RecordPipelineRun(ctx context.Context, report *types.PipelineReport) error

	HealthCheck(ctx context.Context) error
	Close() error
}

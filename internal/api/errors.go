package api

import (
	"context"
	"errors"
	"net/http"

	"lessoncast/internal/apierr"
	"lessoncast/internal/pipeline"
	"lessoncast/internal/playback"
	"lessoncast/internal/quiz"
	"lessoncast/internal/session"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

var (
	ErrAdminDisabled  = errors.New("admin API is disabled")
	ErrAdminKey       = errors.New("missing or invalid admin key")
	ErrUnknownAction  = errors.New("unknown session action")
	ErrNoLessonSource = errors.New("either text or slides is required")
	ErrQuestionAbsent = errors.New("question not found")
	ErrUnavailable    = errors.New("feature is not available on this server")
)

var badRequests = []error{
	types.ErrInvalidUserID,
	types.ErrInvalidLessonID,
	types.ErrInvalidLessonOrder,
	types.ErrInvalidTitle,
	types.ErrNoSlides,
	types.ErrSlideNumbering,
	types.ErrEmptySlideText,
	types.ErrNegativeDuration,
	types.ErrInvalidTheme,
	types.ErrInvalidCommand,
	types.ErrInvalidQuestion,
	types.ErrInvalidDifficulty,
	session.ErrInvalidRole,
	session.ErrInvalidLessonID,
	quiz.ErrEmptyAnswer,
	quiz.ErrInvalidCount,
	quiz.ErrNoLessonText,
	pipeline.ErrClearWithSubset,
	pipeline.ErrUnknownSlide,
	pipeline.ErrNoQuestions,
	ErrUnknownAction,
	ErrNoLessonSource,
}

// classify maps domain errors to an API error. Errors already carrying a
// status pass through.
func classify(err error) *apierr.Error {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return apierr.NotFound("session_not_found", err)
	case errors.Is(err, interfaces.ErrLessonNotFound):
		return apierr.NotFound("lesson_not_found", err)
	case errors.Is(err, pipeline.ErrJobNotFound):
		return apierr.NotFound("job_not_found", err)
	case errors.Is(err, ErrQuestionAbsent):
		return apierr.NotFound("question_not_found", err)
	case errors.Is(err, interfaces.ErrUnauthorized):
		return apierr.New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, ErrAdminKey):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, playback.ErrSessionClosed):
		return apierr.New(http.StatusGone, "session_closed", err)
	case errors.Is(err, quiz.ErrUnparsable):
		return apierr.New(http.StatusBadGateway, "bad_model_output", err)
	case errors.Is(err, interfaces.ErrNotConfigured), errors.Is(err, ErrAdminDisabled), errors.Is(err, ErrUnavailable):
		return apierr.New(http.StatusServiceUnavailable, "not_configured", err)
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrRunnerStopped), errors.Is(err, session.ErrManagerClosed):
		return apierr.New(http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusGatewayTimeout, "timeout", err)
	}
	for _, target := range badRequests {
		if errors.Is(err, target) {
			return apierr.BadRequest("invalid_request", err)
		}
	}
	return apierr.Internal(err)
}

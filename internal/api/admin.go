package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"lessoncast/internal/apierr"
	"lessoncast/internal/pipeline"
	"lessoncast/internal/slides"
	"lessoncast/pkg/types"
)

const adminKeyHeader = "X-Admin-Key"

// adminMiddleware requires the configured admin key. With no key configured
// the admin surface is disabled.
func (s *Server) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.AdminKey == "" {
			s.writeError(w, r, ErrAdminDisabled)
			return
		}
		got := r.Header.Get(adminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.AdminKey)) != 1 {
			s.log.Warn("admin request rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			s.writeError(w, r, ErrAdminKey)
			return
		}
		next(w, r)
	}
}

type SplitRequest struct {
	Text string `json:"text" validate:"required"`
}

type SplitResponse struct {
	Slides []types.Slide `json:"slides"`
}

// POST /api/admin/slides/split
func (s *Server) splitSlides(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out := slides.Build(req.Text, s.deps.Estimator)
	if out == nil {
		out = []types.Slide{}
	}
	s.writeJSON(w, http.StatusOK, SplitResponse{Slides: out})
}

type UpsertLessonRequest struct {
	Order       int           `json:"order" validate:"required,min=1"`
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Emoji       string        `json:"emoji" validate:"max=16"`
	Published   bool          `json:"published"`
	Text        string        `json:"text"`
	Slides      []types.Slide `json:"slides" validate:"omitempty,dive"`
}

// PUT /api/admin/lessons/{id}
func (s *Server) upsertLesson(w http.ResponseWriter, r *http.Request) {
	var req UpsertLessonRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lesson := &types.Lesson{
		ID:          r.PathValue("id"),
		Order:       req.Order,
		Title:       req.Title,
		Description: req.Description,
		Emoji:       req.Emoji,
		Published:   req.Published,
		Slides:      req.Slides,
	}
	switch {
	case len(lesson.Slides) > 0:
	case req.Text != "":
		lesson.Slides = slides.Build(req.Text, s.deps.Estimator)
	default:
		s.writeError(w, r, apierr.BadRequest("missing_content", ErrNoLessonSource))
		return
	}
	slides.FillEstimates(lesson, s.deps.Estimator)

	if err := lesson.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Store.SaveLesson(r.Context(), lesson); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("lesson saved", "lesson_id", lesson.ID, "order", lesson.Order, "slides", len(lesson.Slides))
	s.writeJSON(w, http.StatusOK, lesson)
}

type GenerateAudioRequest struct {
	VoiceID string `json:"voice_id" validate:"max=64"`
	Clear   bool   `json:"clear"`
	Deploy  bool   `json:"deploy"`
	Slides  []int  `json:"slides" validate:"omitempty,dive,min=1"`
}

// POST /api/admin/lessons/{id}/audio
func (s *Server) generateAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	var req GenerateAudioRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Clear && len(req.Slides) > 0 {
		s.writeError(w, r, pipeline.ErrClearWithSubset)
		return
	}

	lessonID := r.PathValue("id")
	if _, err := s.deps.Store.FetchLessonDetail(r.Context(), lessonID); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.deps.Jobs.Submit(pipeline.Request{
		LessonID: lessonID,
		VoiceID:  req.VoiceID,
		Clear:    req.Clear,
		Deploy:   req.Deploy,
		Slides:   req.Slides,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("audio generation queued", "job_id", job.ID, "lesson_id", lessonID, "slides", len(req.Slides))
	s.writeJSON(w, http.StatusAccepted, job)
}

type ClearAudioResponse struct {
	LessonID string `json:"lesson_id"`
	Deleted  int    `json:"deleted"`
}

// POST /api/admin/lessons/{id}/audio/clear
func (s *Server) clearAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audio == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	lesson, err := s.deps.Store.FetchLessonDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted, err := s.deps.Audio.ClearExisting(r.Context(), lesson.Order)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("clear audio for %s: %w", lesson.ID, err))
		return
	}
	if err := s.deps.Store.ClearSlideAudio(r.Context(), lesson.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ClearAudioResponse{LessonID: lesson.ID, Deleted: deleted})
}

type QuestionAudioRequest struct {
	VoiceID string `json:"voice_id" validate:"max=64"`
	Clear   bool   `json:"clear"`
}

// POST /api/admin/lessons/{id}/questions/audio
//
// Narrates the saved questions synchronously and returns the per-question
// report.
func (s *Server) generateQuestionAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audio == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	var req QuestionAudioRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.deps.Audio.RunQuestions(r.Context(), pipeline.QuestionRequest{
		LessonID: r.PathValue("id"),
		VoiceID:  req.VoiceID,
		Clear:    req.Clear,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// POST /api/admin/lessons/{id}/questions/audio/clear
func (s *Server) clearQuestionAudio(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audio == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	lesson, err := s.deps.Store.FetchLessonDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted, err := s.deps.Audio.ClearQuestionAudio(r.Context(), lesson.Order)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("clear question audio for %s: %w", lesson.ID, err))
		return
	}
	s.writeJSON(w, http.StatusOK, ClearAudioResponse{LessonID: lesson.ID, Deleted: deleted})
}

type JobListResponse struct {
	Jobs []types.Job `json:"jobs"`
}

// GET /api/admin/jobs
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	jobs := s.deps.Jobs.List()
	if jobs == nil {
		jobs = []types.Job{}
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
}

// GET /api/admin/jobs/{id}
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	job, err := s.deps.Jobs.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// POST /api/admin/deploy
func (s *Server) triggerDeploy(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audio == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	if err := s.deps.Audio.TriggerDeploy(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

type SaveQuestionsRequest struct {
	Questions  []types.Question `json:"questions"`
	Generate   int              `json:"generate" validate:"omitempty,min=1,max=20"`
	Difficulty types.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy hard mixed"`
}

type SaveQuestionsResponse struct {
	LessonID  string           `json:"lesson_id"`
	Generated bool             `json:"generated"`
	Questions []types.Question `json:"questions"`
}

// POST /api/admin/lessons/{id}/questions
//
// Saves the given questions, or asks the model for Generate new ones.
func (s *Server) saveQuestions(w http.ResponseWriter, r *http.Request) {
	var req SaveQuestionsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lesson, err := s.deps.Store.FetchLessonDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := SaveQuestionsResponse{LessonID: lesson.ID, Questions: req.Questions}
	switch {
	case len(req.Questions) > 0:
		for i := range resp.Questions {
			if resp.Questions[i].ID == 0 {
				resp.Questions[i].ID = i + 1
			}
			if err := resp.Questions[i].Validate(); err != nil {
				s.writeError(w, r, fmt.Errorf("question %d: %w", i+1, err))
				return
			}
		}
	case req.Generate > 0:
		if s.deps.Quiz == nil {
			s.writeError(w, r, ErrUnavailable)
			return
		}
		resp.Questions, err = s.deps.Quiz.Generate(r.Context(), lesson, req.Generate, req.Difficulty)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Generated = true
	default:
		s.writeError(w, r, apierr.BadRequest("missing_questions", types.ErrInvalidQuestion))
		return
	}

	if err := s.deps.Store.SaveQuestions(r.Context(), lesson.ID, resp.Questions); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("questions saved", "lesson_id", lesson.ID, "count", len(resp.Questions), "generated", resp.Generated)
	s.writeJSON(w, http.StatusOK, resp)
}

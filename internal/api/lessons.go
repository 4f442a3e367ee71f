package api

import (
	"net/http"
	"time"

	"lessoncast/internal/apierr"
	"lessoncast/pkg/types"
)

type LessonListResponse struct {
	Lessons []types.LessonSummary `json:"lessons"`
}

// GET /api/lessons?user_id=
func (s *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.deps.Store.FetchLessonList(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if lessons == nil {
		lessons = []types.LessonSummary{}
	}

	if userID := r.URL.Query().Get("user_id"); userID != "" {
		if !types.IsValidUserID(userID) {
			s.writeError(w, r, apierr.BadRequest("invalid_user_id", types.ErrInvalidUserID))
			return
		}
		completions, err := s.deps.Store.ListCompletions(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		done := make(map[string]bool, len(completions))
		for _, c := range completions {
			done[c.LessonID] = true
		}
		for i := range lessons {
			lessons[i].Completed = done[lessons[i].ID]
		}
	}

	s.writeJSON(w, http.StatusOK, LessonListResponse{Lessons: lessons})
}

// GET /api/lessons/{id}
func (s *Server) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.deps.Store.FetchLessonDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lesson)
}

// PublicQuestion is a question without its reference answer.
type PublicQuestion struct {
	ID         int              `json:"id"`
	Question   string           `json:"question"`
	Difficulty types.Difficulty `json:"difficulty"`
	Points     int              `json:"points"`
}

type QuestionListResponse struct {
	LessonID  string           `json:"lesson_id"`
	Questions []PublicQuestion `json:"questions"`
}

// GET /api/lessons/{id}/questions
func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	lessonID := r.PathValue("id")
	if _, err := s.deps.Store.FetchLessonDetail(r.Context(), lessonID); err != nil {
		s.writeError(w, r, err)
		return
	}
	questions, err := s.deps.Store.ListQuestions(r.Context(), lessonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := QuestionListResponse{LessonID: lessonID, Questions: make([]PublicQuestion, 0, len(questions))}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, PublicQuestion{
			ID:         q.ID,
			Question:   q.Question,
			Difficulty: q.Difficulty,
			Points:     q.Points,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type CompleteLessonRequest struct {
	UserID string `json:"user_id" validate:"required,max=50"`
}

// POST /api/lessons/{id}/complete
func (s *Server) completeLesson(w http.ResponseWriter, r *http.Request) {
	var req CompleteLessonRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !types.IsValidUserID(req.UserID) {
		s.writeError(w, r, apierr.BadRequest("invalid_user_id", types.ErrInvalidUserID))
		return
	}

	lessonID := r.PathValue("id")
	if _, err := s.deps.Store.FetchLessonDetail(r.Context(), lessonID); err != nil {
		s.writeError(w, r, err)
		return
	}
	completion := &types.Completion{
		UserID:      req.UserID,
		LessonID:    lessonID,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.MarkCompleted(r.Context(), completion); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, completion)
}

package api

import (
	"net/http"

	"lessoncast/pkg/types"
)

type CheckAnswerRequest struct {
	LessonID   string `json:"lesson_id" validate:"required,max=64"`
	QuestionID int    `json:"question_id" validate:"required,min=1"`
	Answer     string `json:"answer" validate:"max=2000"`
}

type CheckAnswerResponse struct {
	types.GradeResult
	QuestionID    int    `json:"question_id"`
	CorrectAnswer string `json:"correct_answer"`
}

// POST /api/quiz/check
func (s *Server) checkAnswer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quiz == nil {
		s.writeError(w, r, ErrUnavailable)
		return
	}
	var req CheckAnswerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	questions, err := s.deps.Store.ListQuestions(r.Context(), req.LessonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var question *types.Question
	for i := range questions {
		if questions[i].ID == req.QuestionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		s.writeError(w, r, ErrQuestionAbsent)
		return
	}

	result, err := s.deps.Quiz.Grade(r.Context(), *question, req.Answer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CheckAnswerResponse{
		GradeResult:   result,
		QuestionID:    question.ID,
		CorrectAnswer: question.CorrectAnswer,
	})
}

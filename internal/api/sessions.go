package api

import (
	"net/http"

	"lessoncast/internal/apierr"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

type CreateSessionRequest struct {
	LessonID string `json:"lesson_id" validate:"required,max=64"`
	UserID   string `json:"user_id" validate:"required,max=50"`
}

type SessionListResponse struct {
	Sessions []types.PlaybackSnapshot `json:"sessions"`
}

type ControlRequest struct {
	UserID string `json:"user_id" validate:"required,max=50"`
}

type GotoRequest struct {
	UserID string `json:"user_id" validate:"required,max=50"`
	Index  *int   `json:"index" validate:"required,min=0"`
}

var sessionActions = map[string]types.CommandType{
	"play":     types.CommandPlay,
	"pause":    types.CommandPause,
	"next":     types.CommandNext,
	"previous": types.CommandPrevious,
}

// POST /api/sessions
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.Sessions.CreateSession(r.Context(), req.LessonID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("session created", "session_id", snap.SessionID, "lesson_id", req.LessonID, "user_id", req.UserID)
	s.writeJSON(w, http.StatusCreated, snap)
}

// GET /api/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.deps.Sessions.ListSessions()
	if sessions == nil {
		sessions = []types.PlaybackSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions})
}

// GET /api/sessions/{id}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Sessions.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// POST /api/sessions/{id}/{action}
func (s *Server) controlSession(w http.ResponseWriter, r *http.Request) {
	cmdType, ok := sessionActions[r.PathValue("action")]
	if !ok {
		s.writeError(w, r, apierr.NotFound("unknown_action", ErrUnknownAction))
		return
	}
	var req ControlRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.control(w, r, req.UserID, types.Command{Type: cmdType})
}

// POST /api/sessions/{id}/goto
func (s *Server) gotoSlide(w http.ResponseWriter, r *http.Request) {
	var req GotoRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.control(w, r, req.UserID, types.Command{Type: types.CommandGoTo, Index: *req.Index})
}

func (s *Server) control(w http.ResponseWriter, r *http.Request, userID string, cmd types.Command) {
	sessionID := r.PathValue("id")
	if err := s.deps.Sessions.ValidateSessionAccess(sessionID, userID, interfaces.RoleController); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.Sessions.Control(r.Context(), sessionID, cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DELETE /api/sessions/{id}?user_id=
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, apierr.BadRequest("missing_user_id", types.ErrInvalidUserID))
		return
	}
	if err := s.deps.Sessions.ValidateSessionAccess(sessionID, userID, interfaces.RoleController); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Sessions.CloseSession(sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("session closed", "session_id", sessionID, "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

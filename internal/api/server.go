// Package api serves the lesson catalog, playback sessions, quiz checking
// and the admin surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"lessoncast/internal/apierr"
	"lessoncast/internal/logger"
	"lessoncast/internal/pipeline"
	"lessoncast/internal/slides"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

const maxBodyBytes = 1 << 20

// ConnectionStats reports live realtime connections.
type ConnectionStats interface {
	Stats() map[string]int
}

// Grader checks answers and writes question sets.
type Grader interface {
	Grade(ctx context.Context, q types.Question, answer string) (types.GradeResult, error)
	Generate(ctx context.Context, lesson *types.Lesson, count int, difficulty types.Difficulty) ([]types.Question, error)
}

// JobQueue runs audio generation in the background.
type JobQueue interface {
	Submit(req pipeline.Request) (types.Job, error)
	Get(id string) (types.Job, error)
	List() []types.Job
}

// AudioAdmin clears generated clips, narrates quiz questions and triggers
// deploys.
type AudioAdmin interface {
	ClearExisting(ctx context.Context, lessonOrder int) (int, error)
	ClearQuestionAudio(ctx context.Context, lessonOrder int) (int, error)
	RunQuestions(ctx context.Context, req pipeline.QuestionRequest) (*types.QuestionAudioReport, error)
	TriggerDeploy(ctx context.Context) error
}

// Deps are the collaborators of a Server. Realtime, Quiz, Jobs and Audio
// may be nil; their routes then answer 503.
type Deps struct {
	Store     interfaces.LessonStore
	Sessions  interfaces.SessionManager
	Realtime  ConnectionStats
	Quiz      Grader
	Jobs      JobQueue
	Audio     AudioAdmin
	Estimator slides.Estimator
	AdminKey  string

	// AudioDir, when set, is served under /audio/.
	AudioDir string
}

// Server is the HTTP API. It holds no business logic: requests are decoded,
// validated and handed to the collaborators.
type Server struct {
	deps     Deps
	log      *logger.Logger
	validate *validator.Validate
	mux      *http.ServeMux
	started  time.Time
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewServer(deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if deps.Estimator.WordsPerSecond <= 0 {
		deps.Estimator = slides.DefaultEstimator()
	}
	s := &Server{
		deps:     deps,
		log:      log.With("service", "API"),
		validate: validator.New(),
		mux:      http.NewServeMux(),
		started:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.corsMiddleware(s.jsonMiddleware(h)))
	}
	admin := func(pattern string, h http.HandlerFunc) {
		api(pattern, s.adminMiddleware(h))
	}

	api("GET /health", s.healthCheck)

	api("GET /api/lessons", s.listLessons)
	api("GET /api/lessons/{id}", s.getLesson)
	api("GET /api/lessons/{id}/questions", s.listQuestions)
	api("POST /api/lessons/{id}/complete", s.completeLesson)

	api("POST /api/sessions", s.createSession)
	api("GET /api/sessions", s.listSessions)
	api("GET /api/sessions/{id}", s.getSession)
	api("POST /api/sessions/{id}/goto", s.gotoSlide)
	api("POST /api/sessions/{id}/{action}", s.controlSession)
	api("DELETE /api/sessions/{id}", s.closeSession)

	api("POST /api/quiz/check", s.checkAnswer)

	admin("POST /api/admin/slides/split", s.splitSlides)
	admin("PUT /api/admin/lessons/{id}", s.upsertLesson)
	admin("POST /api/admin/lessons/{id}/audio", s.generateAudio)
	admin("POST /api/admin/lessons/{id}/audio/clear", s.clearAudio)
	admin("POST /api/admin/lessons/{id}/questions", s.saveQuestions)
	admin("POST /api/admin/lessons/{id}/questions/audio", s.generateQuestionAudio)
	admin("POST /api/admin/lessons/{id}/questions/audio/clear", s.clearQuestionAudio)
	admin("GET /api/admin/jobs", s.listJobs)
	admin("GET /api/admin/jobs/{id}", s.getJob)
	admin("POST /api/admin/deploy", s.triggerDeploy)

	s.mux.Handle("OPTIONS /", s.corsMiddleware(http.NotFoundHandler()))

	if s.deps.AudioDir != "" {
		files := http.StripPrefix("/audio/", http.FileServer(http.Dir(s.deps.AudioDir)))
		s.mux.Handle("GET /audio/", s.corsMiddleware(files))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Sessions    int            `json:"sessions"`
	Connections map[string]int `json:"connections,omitempty"`
	Uptime      string         `json:"uptime"`
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "healthy",
		Sessions:  len(s.deps.Sessions.ListSessions()),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if err := s.deps.Store.HealthCheck(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = fmt.Sprintf("error: %v", err)
	}
	if s.deps.Realtime != nil {
		resp.Connections = s.deps.Realtime.Stats()
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and runs its validation tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.BadRequest("invalid_json", errors.New("request body is required"))
		}
		return apierr.BadRequest("invalid_json", fmt.Errorf("invalid JSON: %w", err))
	}
	if err := s.validate.Struct(dst); err != nil {
		return apierr.BadRequest("validation_failed", validationError(err))
	}
	return nil
}

// validationError flattens validator errors into one readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		parts = append(parts, msg)
	}
	return errors.New(strings.Join(parts, "; "))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to encode response", "error", err)
	}
}

// writeError maps err to a status and writes the error envelope. Internal
// failures are logged and their detail withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	msg := e.Error()
	if e.Status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", e.Status, "error", err)
		if e.Status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	s.writeJSON(w, e.Status, ErrorResponse{
		Error:   http.StatusText(e.Status),
		Code:    e.Code,
		Message: msg,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

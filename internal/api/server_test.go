package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lessoncast/internal/logger"
	"lessoncast/internal/pipeline"
	"lessoncast/internal/playback"
	"lessoncast/internal/quiz"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

const testAdminKey = "admin-secret"

type testEnv struct {
	server   *Server
	store    *mockStore
	sessions *mockSessions
	grader   *mockGrader
	jobs     *mockJobs
	audio    *mockAudio
}

func sampleLesson(id string, order int) *types.Lesson {
	return &types.Lesson{
		ID:        id,
		Order:     order,
		Title:     fmt.Sprintf("Lesson %d", order),
		Published: true,
		Slides: []types.Slide{
			{Number: 1, Text: "Fractions split a whole into equal parts.", EstimatedDurationMs: 3000, Theme: types.SlideTheme{Kind: types.ThemePlain}},
			{Number: 2, Text: "The denominator counts the parts.", EstimatedDurationMs: 2000, Theme: types.SlideTheme{Kind: types.ThemePlain}},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMockStore(sampleLesson("fractions", 1), sampleLesson("decimals", 2))
	env := &testEnv{
		store:    store,
		sessions: newMockSessions(store),
		grader:   &mockGrader{},
		jobs:     newMockJobs(),
		audio:    &mockAudio{},
	}
	env.server = NewServer(Deps{
		Store:    store,
		Sessions: env.sessions,
		Quiz:     env.grader,
		Jobs:     env.jobs,
		Audio:    env.audio,
		AdminKey: testAdminKey,
	}, logger.Nop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) admin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, adminKeyHeader, testAdminKey)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != code {
		t.Errorf("code = %q, want %q", resp.Code, code)
	}
	if resp.Error != http.StatusText(status) {
		t.Errorf("error = %q, want %q", resp.Error, http.StatusText(status))
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, rec, http.StatusOK)
	var health HealthResponse
	decodeBody(t, rec, &health)
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	env.store.healthErr = errBoom
	rec = env.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/sessions", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), adminKeyHeader) {
		t.Error("admin key header should be allowed")
	}
}

func TestListLessons_MarksCompleted(t *testing.T) {
	env := newTestEnv(t)
	env.store.completions = append(env.store.completions, types.Completion{UserID: "ana", LessonID: "decimals"})

	rec := env.do(t, http.MethodGet, "/api/lessons?user_id=ana", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp LessonListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Lessons) != 2 {
		t.Fatalf("got %d lessons, want 2", len(resp.Lessons))
	}
	if resp.Lessons[0].ID != "fractions" || resp.Lessons[0].Completed {
		t.Errorf("first lesson = %+v", resp.Lessons[0])
	}
	if !resp.Lessons[1].Completed {
		t.Error("decimals should be marked completed")
	}

	rec = env.do(t, http.MethodGet, "/api/lessons?user_id=bad%20id", nil)
	expectErrorCode(t, rec, http.StatusBadRequest, "invalid_user_id")
}

func TestGetLesson(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/lessons/fractions", nil)
	expectStatus(t, rec, http.StatusOK)
	var lesson types.Lesson
	decodeBody(t, rec, &lesson)
	if len(lesson.Slides) != 2 {
		t.Errorf("slides = %d, want 2", len(lesson.Slides))
	}

	rec = env.do(t, http.MethodGet, "/api/lessons/missing", nil)
	expectErrorCode(t, rec, http.StatusNotFound, "lesson_not_found")
}

func TestListQuestions_HidesAnswers(t *testing.T) {
	env := newTestEnv(t)
	env.store.questions["fractions"] = []types.Question{
		{ID: 1, Question: "What is a half?", CorrectAnswer: "one of two equal parts", Difficulty: types.DifficultyEasy, Points: 10},
	}

	rec := env.do(t, http.MethodGet, "/api/lessons/fractions/questions", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "equal parts") {
		t.Errorf("answer leaked: %s", rec.Body.String())
	}
	var resp QuestionListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Questions) != 1 || resp.Questions[0].Points != 10 {
		t.Errorf("questions = %+v", resp.Questions)
	}
}

func TestCompleteLesson(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/lessons/fractions/complete", CompleteLessonRequest{UserID: "ana"})
	expectStatus(t, rec, http.StatusOK)
	if len(env.store.completions) != 1 || env.store.completions[0].LessonID != "fractions" {
		t.Errorf("completions = %+v", env.store.completions)
	}

	rec = env.do(t, http.MethodPost, "/api/lessons/fractions/complete", `{}`)
	expectErrorCode(t, rec, http.StatusBadRequest, "validation_failed")

	rec = env.do(t, http.MethodPost, "/api/lessons/missing/complete", CompleteLessonRequest{UserID: "ana"})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{LessonID: "fractions", UserID: "ana"})
	expectStatus(t, rec, http.StatusCreated)
	var snap types.PlaybackSnapshot
	decodeBody(t, rec, &snap)
	if snap.SessionID == "" || snap.SlideCount != 2 || snap.PlayState != types.PlayStateStopped {
		t.Errorf("snapshot = %+v", snap)
	}

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed JSON", `{"lesson_id":`, http.StatusBadRequest},
		{"empty body", nil, http.StatusBadRequest},
		{"missing user", CreateSessionRequest{LessonID: "fractions"}, http.StatusBadRequest},
		{"unknown lesson", CreateSessionRequest{LessonID: "nope", UserID: "ana"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			expectStatus(t, rec, tt.status)
		})
	}
}

func TestSessionControl(t *testing.T) {
	env := newTestEnv(t)
	snap, _ := env.sessions.CreateSession(context.Background(), "fractions", "ana")
	base := "/api/sessions/" + snap.SessionID

	rec := env.do(t, http.MethodPost, base+"/play", ControlRequest{UserID: "ana"})
	expectStatus(t, rec, http.StatusOK)
	var got types.PlaybackSnapshot
	decodeBody(t, rec, &got)
	if got.PlayState != types.PlayStatePlaying {
		t.Errorf("play_state = %q, want playing", got.PlayState)
	}

	index := 1
	rec = env.do(t, http.MethodPost, base+"/goto", GotoRequest{UserID: "ana", Index: &index})
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &got)
	if got.CurrentSlideIndex != 1 {
		t.Errorf("index = %d, want 1", got.CurrentSlideIndex)
	}

	rec = env.do(t, http.MethodPost, base+"/goto", `{"user_id":"ana"}`)
	expectErrorCode(t, rec, http.StatusBadRequest, "validation_failed")

	rec = env.do(t, http.MethodPost, base+"/pause", ControlRequest{UserID: "mallory"})
	expectErrorCode(t, rec, http.StatusForbidden, "forbidden")

	rec = env.do(t, http.MethodPost, base+"/rewind", ControlRequest{UserID: "ana"})
	expectErrorCode(t, rec, http.StatusNotFound, "unknown_action")

	rec = env.do(t, http.MethodPost, "/api/sessions/missing/play", ControlRequest{UserID: "ana"})
	expectErrorCode(t, rec, http.StatusNotFound, "session_not_found")

	if len(env.sessions.commands) != 2 {
		t.Errorf("commands applied = %d, want 2", len(env.sessions.commands))
	}
}

func TestListAndGetSessions(t *testing.T) {
	env := newTestEnv(t)
	snap, _ := env.sessions.CreateSession(context.Background(), "fractions", "ana")

	rec := env.do(t, http.MethodGet, "/api/sessions", nil)
	expectStatus(t, rec, http.StatusOK)
	var list SessionListResponse
	decodeBody(t, rec, &list)
	if len(list.Sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(list.Sessions))
	}

	rec = env.do(t, http.MethodGet, "/api/sessions/"+snap.SessionID, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	snap, _ := env.sessions.CreateSession(context.Background(), "fractions", "ana")
	path := "/api/sessions/" + snap.SessionID

	expectStatus(t, env.do(t, http.MethodDelete, path, nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodDelete, path+"?user_id=bob", nil), http.StatusForbidden)
	expectStatus(t, env.do(t, http.MethodDelete, path+"?user_id=ana", nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodDelete, path+"?user_id=ana", nil), http.StatusNotFound)
}

func TestCheckAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.store.questions["fractions"] = []types.Question{
		{ID: 1, Question: "Half of 4?", CorrectAnswer: "2", Difficulty: types.DifficultyEasy, Points: 10},
	}

	rec := env.do(t, http.MethodPost, "/api/quiz/check", CheckAnswerRequest{LessonID: "fractions", QuestionID: 1, Answer: "2"})
	expectStatus(t, rec, http.StatusOK)
	var resp CheckAnswerResponse
	decodeBody(t, rec, &resp)
	if !resp.Correct || resp.EarnedPoints != 10 || resp.CorrectAnswer != "2" {
		t.Errorf("response = %+v", resp)
	}

	rec = env.do(t, http.MethodPost, "/api/quiz/check", CheckAnswerRequest{LessonID: "fractions", QuestionID: 9, Answer: "2"})
	expectErrorCode(t, rec, http.StatusNotFound, "question_not_found")

	rec = env.do(t, http.MethodPost, "/api/quiz/check", CheckAnswerRequest{LessonID: "fractions", QuestionID: 1})
	expectErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestAdmin_KeyRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/deploy", nil)
	expectErrorCode(t, rec, http.StatusUnauthorized, "unauthorized")

	rec = env.do(t, http.MethodPost, "/api/admin/deploy", nil, adminKeyHeader, "wrong")
	expectStatus(t, rec, http.StatusUnauthorized)

	disabled := NewServer(Deps{Store: env.store, Sessions: env.sessions}, logger.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/deploy", nil)
	req.Header.Set(adminKeyHeader, "anything")
	out := httptest.NewRecorder()
	disabled.ServeHTTP(out, req)
	expectErrorCode(t, out, http.StatusServiceUnavailable, "not_configured")

	if env.audio.deploys != 0 {
		t.Error("deploy must not run without a valid key")
	}
}

func TestAdmin_SplitSlides(t *testing.T) {
	env := newTestEnv(t)
	rec := env.admin(t, http.MethodPost, "/api/admin/slides/split", SplitRequest{Text: "[SLIDE:1] # Intro\nHello there [SLIDE:2] Second slide"})
	expectStatus(t, rec, http.StatusOK)
	var resp SplitResponse
	decodeBody(t, rec, &resp)
	if len(resp.Slides) != 2 {
		t.Fatalf("slides = %d, want 2", len(resp.Slides))
	}
	if resp.Slides[0].Title != "Intro" || resp.Slides[1].Number != 2 {
		t.Errorf("slides = %+v", resp.Slides)
	}
}

func TestAdmin_UpsertLesson(t *testing.T) {
	env := newTestEnv(t)

	rec := env.admin(t, http.MethodPut, "/api/admin/lessons/percent", UpsertLessonRequest{
		Order: 3,
		Title: "Percentages",
		Text:  "A percent is a fraction of one hundred.\n---\nFifty percent is one half.",
	})
	expectStatus(t, rec, http.StatusOK)
	saved, err := env.store.FetchLessonDetail(context.Background(), "percent")
	if err != nil {
		t.Fatalf("lesson not saved: %v", err)
	}
	if len(saved.Slides) != 2 || saved.Slides[0].EstimatedDurationMs == 0 {
		t.Errorf("slides = %+v", saved.Slides)
	}

	rec = env.admin(t, http.MethodPut, "/api/admin/lessons/percent", UpsertLessonRequest{Order: 3, Title: "Empty"})
	expectErrorCode(t, rec, http.StatusBadRequest, "missing_content")

	rec = env.admin(t, http.MethodPut, "/api/admin/lessons/bad%20id", UpsertLessonRequest{Order: 3, Title: "X", Text: "Some text long enough to be a slide."})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAdmin_GenerateAudio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/audio", GenerateAudioRequest{Slides: []int{2}, Deploy: true})
	expectStatus(t, rec, http.StatusAccepted)
	var job types.Job
	decodeBody(t, rec, &job)
	if job.Status != types.JobQueued || job.LessonID != "fractions" {
		t.Errorf("job = %+v", job)
	}
	if len(env.jobs.submitted) != 1 || !env.jobs.submitted[0].Deploy {
		t.Errorf("submitted = %+v", env.jobs.submitted)
	}

	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/audio", GenerateAudioRequest{Clear: true, Slides: []int{1}})
	expectErrorCode(t, rec, http.StatusBadRequest, "invalid_request")

	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/missing/audio", GenerateAudioRequest{})
	expectStatus(t, rec, http.StatusNotFound)

	env.jobs.err = pipeline.ErrQueueFull
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/audio", GenerateAudioRequest{})
	expectErrorCode(t, rec, http.StatusServiceUnavailable, "unavailable")

	rec = env.admin(t, http.MethodGet, "/api/admin/jobs/"+job.ID, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = env.admin(t, http.MethodGet, "/api/admin/jobs/unknown", nil)
	expectErrorCode(t, rec, http.StatusNotFound, "job_not_found")

	rec = env.admin(t, http.MethodGet, "/api/admin/jobs", nil)
	expectStatus(t, rec, http.StatusOK)
	var list JobListResponse
	decodeBody(t, rec, &list)
	if len(list.Jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(list.Jobs))
	}
}

func TestAdmin_ClearAudio(t *testing.T) {
	env := newTestEnv(t)
	rec := env.admin(t, http.MethodPost, "/api/admin/lessons/decimals/audio/clear", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp ClearAudioResponse
	decodeBody(t, rec, &resp)
	if resp.Deleted != 3 {
		t.Errorf("deleted = %d, want 3", resp.Deleted)
	}
	if len(env.audio.clearedOrders) != 1 || env.audio.clearedOrders[0] != 2 {
		t.Errorf("cleared orders = %v, want [2]", env.audio.clearedOrders)
	}
	if len(env.store.cleared) != 1 || env.store.cleared[0] != "decimals" {
		t.Errorf("store cleared = %v", env.store.cleared)
	}
}

func TestAdmin_QuestionAudio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions/audio", QuestionAudioRequest{VoiceID: "rachel", Clear: true})
	expectStatus(t, rec, http.StatusOK)
	var report types.QuestionAudioReport
	decodeBody(t, rec, &report)
	if report.Succeeded != 1 || len(report.Items) != 1 || report.Items[0].Key != "lesson1/question1.mp3" {
		t.Errorf("report = %+v", report)
	}
	if len(env.audio.questionRuns) != 1 {
		t.Fatalf("runs = %d, want 1", len(env.audio.questionRuns))
	}
	if got := env.audio.questionRuns[0]; got.LessonID != "fractions" || got.VoiceID != "rachel" || !got.Clear {
		t.Errorf("request = %+v", got)
	}

	env.audio.questionErr = pipeline.ErrNoQuestions
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions/audio", QuestionAudioRequest{})
	expectErrorCode(t, rec, http.StatusBadRequest, "invalid_request")

	env.audio.questionErr = interfaces.ErrLessonNotFound
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/missing/questions/audio", QuestionAudioRequest{})
	expectErrorCode(t, rec, http.StatusNotFound, "lesson_not_found")

	rec = env.do(t, http.MethodPost, "/api/admin/lessons/fractions/questions/audio", QuestionAudioRequest{})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestAdmin_ClearQuestionAudio(t *testing.T) {
	env := newTestEnv(t)
	rec := env.admin(t, http.MethodPost, "/api/admin/lessons/decimals/questions/audio/clear", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp ClearAudioResponse
	decodeBody(t, rec, &resp)
	if resp.LessonID != "decimals" || resp.Deleted != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(env.audio.questionClears) != 1 || env.audio.questionClears[0] != 2 {
		t.Errorf("question clears = %v, want [2]", env.audio.questionClears)
	}
	if len(env.audio.clearedOrders) != 0 || len(env.store.cleared) != 0 {
		t.Error("clearing question audio must not touch slide audio")
	}

	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/missing/questions/audio/clear", nil)
	expectErrorCode(t, rec, http.StatusNotFound, "lesson_not_found")
}

func TestAdmin_Deploy(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.admin(t, http.MethodPost, "/api/admin/deploy", nil), http.StatusAccepted)

	env.audio.deployErr = fmt.Errorf("%w: deployer", interfaces.ErrNotConfigured)
	expectErrorCode(t, env.admin(t, http.MethodPost, "/api/admin/deploy", nil), http.StatusServiceUnavailable, "not_configured")
	if env.audio.deploys != 2 {
		t.Errorf("deploys = %d, want 2", env.audio.deploys)
	}
}

func TestAdmin_SaveQuestions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{
		Questions: []types.Question{{Question: "Half of 4?", CorrectAnswer: "2", Difficulty: types.DifficultyEasy, Points: 10}},
	})
	expectStatus(t, rec, http.StatusOK)
	if got := env.store.questions["fractions"]; len(got) != 1 || got[0].ID != 1 {
		t.Errorf("saved = %+v", got)
	}

	env.grader.generated = []types.Question{
		{ID: 1, Question: "Q1", CorrectAnswer: "A1", Difficulty: types.DifficultyEasy, Points: 10},
		{ID: 2, Question: "Q2", CorrectAnswer: "A2", Difficulty: types.DifficultyHard, Points: 20},
	}
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{Generate: 2})
	expectStatus(t, rec, http.StatusOK)
	var resp SaveQuestionsResponse
	decodeBody(t, rec, &resp)
	if !resp.Generated || len(env.store.questions["fractions"]) != 2 {
		t.Errorf("response = %+v", resp)
	}

	env.grader.genErr = fmt.Errorf("%w: %w", quiz.ErrNoModel, interfaces.ErrNotConfigured)
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{Generate: 2})
	expectStatus(t, rec, http.StatusServiceUnavailable)

	env.grader.genErr = quiz.ErrUnparsable
	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{Generate: 2})
	expectErrorCode(t, rec, http.StatusBadGateway, "bad_model_output")

	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{
		Questions: []types.Question{{Question: "No answer", Difficulty: types.DifficultyEasy}},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.admin(t, http.MethodPost, "/api/admin/lessons/fractions/questions", SaveQuestionsRequest{Generate: 50})
	expectErrorCode(t, rec, http.StatusBadRequest, "validation_failed")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", interfaces.ErrSessionNotFound), http.StatusNotFound},
		{playback.ErrSessionClosed, http.StatusGone},
		{types.ErrNoSlides, http.StatusBadRequest},
		{pipeline.ErrRunnerStopped, http.StatusServiceUnavailable},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := classify(tt.err).Status; got != tt.status {
			t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errBoom)
	expectStatus(t, rec, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

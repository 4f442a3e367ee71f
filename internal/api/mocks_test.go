package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"lessoncast/internal/pipeline"
	"lessoncast/internal/quiz"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

type mockStore struct {
	mu          sync.Mutex
	lessons     map[string]*types.Lesson
	questions   map[string][]types.Question
	completions []types.Completion
	cleared     []string
	healthErr   error
}

func newMockStore(lessons ...*types.Lesson) *mockStore {
	m := &mockStore{
		lessons:   make(map[string]*types.Lesson),
		questions: make(map[string][]types.Question),
	}
	for _, l := range lessons {
		m.lessons[l.ID] = l
	}
	return m
}

func (m *mockStore) FetchLessonList(ctx context.Context) ([]types.LessonSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.LessonSummary
	for _, l := range m.lessons {
		if l.Published {
			out = append(out, l.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *mockStore) FetchLessonDetail(ctx context.Context, lessonID string) (*types.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[lessonID]
	if !ok {
		return nil, interfaces.ErrLessonNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) FetchLessonByOrder(ctx context.Context, order int) (*types.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lessons {
		if l.Order == order {
			cp := *l
			return &cp, nil
		}
	}
	return nil, interfaces.ErrLessonNotFound
}

func (m *mockStore) SaveLesson(ctx context.Context, lesson *types.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lesson
	m.lessons[lesson.ID] = &cp
	return nil
}

func (m *mockStore) SetSlideAudio(ctx context.Context, lessonID string, slideNumber int, audioURL string) error {
	return nil
}

func (m *mockStore) ClearSlideAudio(ctx context.Context, lessonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, lessonID)
	return nil
}

func (m *mockStore) SaveQuestions(ctx context.Context, lessonID string, questions []types.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[lessonID] = append([]types.Question(nil), questions...)
	return nil
}

func (m *mockStore) ListQuestions(ctx context.Context, lessonID string) ([]types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Question(nil), m.questions[lessonID]...), nil
}

func (m *mockStore) MarkCompleted(ctx context.Context, c *types.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, *c)
	return nil
}

func (m *mockStore) ListCompletions(ctx context.Context, userID string) ([]types.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Completion
	for _, c := range m.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) RecordPipelineRun(ctx context.Context, report *types.PipelineReport) error {
	return nil
}

func (m *mockStore) HealthCheck(ctx context.Context) error { return m.healthErr }
func (m *mockStore) Close() error                          { return nil }

type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]*types.PlaybackSnapshot
	commands []types.Command
	closed   []string
	store    *mockStore
}

func newMockSessions(store *mockStore) *mockSessions {
	return &mockSessions{sessions: make(map[string]*types.PlaybackSnapshot), store: store}
}

func (m *mockSessions) CreateSession(ctx context.Context, lessonID, userID string) (types.PlaybackSnapshot, error) {
	lesson, err := m.store.FetchLessonDetail(ctx, lessonID)
	if err != nil {
		return types.PlaybackSnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &types.PlaybackSnapshot{
		SessionID:  "s-" + lessonID,
		LessonID:   lessonID,
		UserID:     userID,
		SlideCount: len(lesson.Slides),
		PlayState:  types.PlayStateStopped,
		State:      types.StateIdle,
	}
	m.sessions[snap.SessionID] = snap
	return *snap, nil
}

func (m *mockSessions) GetSession(id string) (types.PlaybackSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[id]
	if !ok {
		return types.PlaybackSnapshot{}, interfaces.ErrSessionNotFound
	}
	return *snap, nil
}

func (m *mockSessions) ListSessions() []types.PlaybackSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.PlaybackSnapshot
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

func (m *mockSessions) Control(ctx context.Context, id string, cmd types.Command) (types.PlaybackSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[id]
	if !ok {
		return types.PlaybackSnapshot{}, interfaces.ErrSessionNotFound
	}
	m.commands = append(m.commands, cmd)
	switch cmd.Type {
	case types.CommandPlay:
		snap.State, snap.PlayState = types.StatePlayingFallback, types.PlayStatePlaying
	case types.CommandPause:
		snap.State, snap.PlayState = types.StatePaused, types.PlayStateStopped
	case types.CommandGoTo:
		snap.CurrentSlideIndex = cmd.Index
	}
	return *snap, nil
}

func (m *mockSessions) CloseSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return interfaces.ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.closed = append(m.closed, id)
	return nil
}

func (m *mockSessions) ValidateSessionAccess(id, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[id]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	if role == interfaces.RoleController && snap.UserID != userID {
		return interfaces.ErrUnauthorized
	}
	return nil
}

type mockGrader struct {
	generated []types.Question
	genErr    error
}

func (m *mockGrader) Grade(ctx context.Context, q types.Question, answer string) (types.GradeResult, error) {
	if answer == "" {
		return types.GradeResult{}, quiz.ErrEmptyAnswer
	}
	if answer == q.CorrectAnswer {
		return types.GradeResult{Correct: true, Verdict: types.VerdictCorrect, Score: 100, Method: types.GradeExact, EarnedPoints: q.Points}, nil
	}
	return types.GradeResult{Verdict: types.VerdictIncorrect, Method: types.GradeExact}, nil
}

func (m *mockGrader) Generate(ctx context.Context, lesson *types.Lesson, count int, difficulty types.Difficulty) ([]types.Question, error) {
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.generated, nil
}

type mockJobs struct {
	mu        sync.Mutex
	submitted []pipeline.Request
	jobs      map[string]types.Job
	err       error
}

func newMockJobs() *mockJobs {
	return &mockJobs{jobs: make(map[string]types.Job)}
}

func (m *mockJobs) Submit(req pipeline.Request) (types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.Job{}, m.err
	}
	m.submitted = append(m.submitted, req)
	job := types.Job{ID: "job-1", LessonID: req.LessonID, Status: types.JobQueued, CreatedAt: time.Now()}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockJobs) Get(id string) (types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return types.Job{}, pipeline.ErrJobNotFound
	}
	return j, nil
}

func (m *mockJobs) List() []types.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Job
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}

type mockAudio struct {
	clearedOrders  []int
	questionClears []int
	questionRuns   []pipeline.QuestionRequest
	questionErr    error
	deploys        int
	deployErr      error
}

func (m *mockAudio) ClearQuestionAudio(ctx context.Context, lessonOrder int) (int, error) {
	m.questionClears = append(m.questionClears, lessonOrder)
	return 2, nil
}

func (m *mockAudio) RunQuestions(ctx context.Context, req pipeline.QuestionRequest) (*types.QuestionAudioReport, error) {
	m.questionRuns = append(m.questionRuns, req)
	if m.questionErr != nil {
		return nil, m.questionErr
	}
	return &types.QuestionAudioReport{
		LessonID: req.LessonID,
		Items: []types.QuestionAudioResult{
			{Question: 1, Key: "lesson1/question1.mp3", Status: types.ItemSucceeded, AudioURL: "/audio/lesson1/question1.mp3"},
		},
		Succeeded: 1,
	}, nil
}

func (m *mockAudio) ClearExisting(ctx context.Context, lessonOrder int) (int, error) {
	m.clearedOrders = append(m.clearedOrders, lessonOrder)
	return 3, nil
}

func (m *mockAudio) TriggerDeploy(ctx context.Context) error {
	m.deploys++
	return m.deployErr
}

var errBoom = errors.New("boom")

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// memStore is the subset of a lesson store the pipeline touches.
type memStore struct {
	mu        sync.Mutex
	lessons   map[string]*types.Lesson
	runs      []*types.PipelineReport
	cleared   []string
	failSetOn int
	questions map[string][]types.Question
}

func newMemStore(lessons ...*types.Lesson) *memStore {
	m := &memStore{lessons: map[string]*types.Lesson{}}
	for _, l := range lessons {
		m.lessons[l.ID] = l
	}
	return m
}

func (m *memStore) FetchLessonList(ctx context.Context) ([]types.LessonSummary, error) {
	return nil, nil
}

func (m *memStore) FetchLessonDetail(ctx context.Context, id string) (*types.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return nil, interfaces.ErrLessonNotFound
	}
	cp := *l
	cp.Slides = append([]types.Slide(nil), l.Slides...)
	return &cp, nil
}

func (m *memStore) FetchLessonByOrder(ctx context.Context, order int) (*types.Lesson, error) {
	return nil, interfaces.ErrLessonNotFound
}

func (m *memStore) SaveLesson(ctx context.Context, l *types.Lesson) error { return nil }

func (m *memStore) SetSlideAudio(ctx context.Context, lessonID string, n int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n == m.failSetOn {
		return errors.New("disk full")
	}
	m.lessons[lessonID].Slides[n-1].AudioURL = url
	return nil
}

func (m *memStore) ClearSlideAudio(ctx context.Context, lessonID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, lessonID)
	for i := range m.lessons[lessonID].Slides {
		m.lessons[lessonID].Slides[i].AudioURL = ""
	}
	return nil
}

func (m *memStore) SaveQuestions(ctx context.Context, id string, q []types.Question) error { return nil }
func (m *memStore) ListQuestions(ctx context.Context, id string) ([]types.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questions[id], nil
}
func (m *memStore) MarkCompleted(ctx context.Context, c *types.Completion) error { return nil }
func (m *memStore) ListCompletions(ctx context.Context, userID string) ([]types.Completion, error) {
	return nil, nil
}

func (m *memStore) RecordPipelineRun(ctx context.Context, r *types.PipelineReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memStore) HealthCheck(ctx context.Context) error { return nil }
func (m *memStore) Close() error                          { return nil }

func (m *memStore) audioURL(lessonID string, n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lessons[lessonID].Slides[n-1].AudioURL
}

func (m *memStore) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// fakeSynth echoes the text as audio and fails on texts containing a marker.
type fakeSynth struct {
	mu     sync.Mutex
	voices []string
	texts  []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, voiceID)
	f.texts = append(f.texts, text)
	if strings.Contains(text, "FAIL") {
		return nil, errors.New("quota exceeded")
	}
	return []byte("mp3:" + text), nil
}

type fakeDeployer struct {
	calls int
	err   error
}

func (f *fakeDeployer) TriggerDeploy(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeCache struct{ prefixes []string }

func (f *fakeCache) Invalidate(prefix string) { f.prefixes = append(f.prefixes, prefix) }

func testLesson(texts ...string) *types.Lesson {
	l := &types.Lesson{ID: "terms", Order: 1, Title: "Terms", Published: true}
	for i, t := range texts {
		l.Slides = append(l.Slides, types.Slide{Number: i + 1, Text: t, EstimatedDurationMs: 2000})
	}
	return l
}

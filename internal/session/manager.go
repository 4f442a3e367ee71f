// Package session owns the live playback sessions of this instance.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessoncast/internal/logger"
	"lessoncast/internal/playback"
	"lessoncast/internal/slides"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// DefaultIdleTTL is how long a session may go without a command before the
// reaper closes it.
const DefaultIdleTTL = 30 * time.Minute

// Options configures the sessions a Manager creates.
type Options struct {
	// Playback is the template for every session. UserID and Observers are
	// filled in per session.
	Playback  playback.Options
	Estimator slides.Estimator
	IdleTTL   time.Duration

	// Observers receive every event of every session.
	Observers []playback.Observer

	// CompletionTimeout bounds the store write made when a lesson completes.
	CompletionTimeout time.Duration
}

// Manager implements interfaces.SessionManager.
type Manager struct {
	store    interfaces.LessonStore
	opts     Options
	log      *logger.Logger
	sessions map[string]*playback.Session
	closed   bool
	mu       sync.RWMutex
	pending  sync.WaitGroup
}

var _ interfaces.SessionManager = (*Manager)(nil)

// NewManager creates an empty session manager.
func NewManager(store interfaces.LessonStore, opts Options, log *logger.Logger) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.Estimator.WordsPerSecond <= 0 {
		opts.Estimator = slides.DefaultEstimator()
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 5 * time.Second
	}
	if opts.Playback.Clock == nil {
		opts.Playback.Clock = playback.DefaultOptions().Clock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		store:    store,
		opts:     opts,
		log:      log.With("service", "SessionManager"),
		sessions: make(map[string]*playback.Session),
	}
}

// AddObserver registers o for sessions created afterwards.
func (m *Manager) AddObserver(o playback.Observer) {
	m.mu.Lock()
	m.opts.Observers = append(m.opts.Observers, o)
	m.mu.Unlock()
}

// CreateSession loads the lesson and starts a stopped session at slide 0.
func (m *Manager) CreateSession(ctx context.Context, lessonID, userID string) (types.PlaybackSnapshot, error) {
	if lessonID == "" {
		return types.PlaybackSnapshot{}, ErrInvalidLessonID
	}
	if !types.IsValidUserID(userID) {
		return types.PlaybackSnapshot{}, types.ErrInvalidUserID
	}

	lesson, err := m.store.FetchLessonDetail(ctx, lessonID)
	if err != nil {
		return types.PlaybackSnapshot{}, fmt.Errorf("failed to load lesson %s: %w", lessonID, err)
	}
	if len(lesson.Slides) == 0 {
		return types.PlaybackSnapshot{}, types.ErrNoSlides
	}
	slides.FillEstimates(lesson, m.opts.Estimator)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return types.PlaybackSnapshot{}, ErrManagerClosed
	}

	opts := m.opts.Playback
	opts.UserID = userID
	opts.Observers = append(append([]playback.Observer(nil), m.opts.Observers...), m.onEvent)
	if opts.Logger == nil {
		opts.Logger = m.log
	}

	id := uuid.New().String()
	sess, err := playback.New(id, lesson, opts)
	if err != nil {
		return types.PlaybackSnapshot{}, err
	}
	m.sessions[id] = sess

	m.log.Info("session created", "session_id", id, "lesson_id", lessonID, "user_id", userID, "slides", len(lesson.Slides))
	return sess.State(), nil
}

// Session returns the live session with id.
func (m *Manager) Session(sessionID string) (*playback.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) GetSession(sessionID string) (types.PlaybackSnapshot, error) {
	sess, err := m.Session(sessionID)
	if err != nil {
		return types.PlaybackSnapshot{}, err
	}
	return sess.State(), nil
}

// ListSessions returns the snapshot of every live session ordered by id.
func (m *Manager) ListSessions() []types.PlaybackSnapshot {
	m.mu.RLock()
	out := make([]types.PlaybackSnapshot, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.State())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Control applies cmd to the session.
func (m *Manager) Control(ctx context.Context, sessionID string, cmd types.Command) (types.PlaybackSnapshot, error) {
	sess, err := m.Session(sessionID)
	if err != nil {
		return types.PlaybackSnapshot{}, err
	}
	return sess.Apply(ctx, cmd)
}

// CloseSession stops the session and forgets it.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	m.log.Info("session closed", "session_id", sessionID)
	return nil
}

// CloseAll stops every session and refuses new ones. It waits for pending
// completion writes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*playback.Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	m.pending.Wait()
	if len(sessions) > 0 {
		m.log.Info("all sessions closed", "count", len(sessions))
	}
}

// ValidateSessionAccess lets the owner join as controller and anyone join as
// viewer.
func (m *Manager) ValidateSessionAccess(sessionID, userID, role string) error {
	sess, err := m.Session(sessionID)
	if err != nil {
		return err
	}
	switch role {
	case interfaces.RoleController:
		if sess.UserID() != userID {
			return ErrUnauthorized
		}
		return nil
	case interfaces.RoleViewer:
		return nil
	default:
		return ErrInvalidRole
	}
}

// ReapIdle closes sessions whose last command is older than the idle TTL and
// returns how many were closed. Sessions still playing are never idle.
func (m *Manager) ReapIdle(now time.Time) int {
	cutoff := now.Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*playback.Session
	for id, sess := range m.sessions {
		if sess.LastActivity().Before(cutoff) && !sess.State().State.IsPlaying() {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
		m.log.Info("idle session reaped", "session_id", sess.ID(), "last_activity", sess.LastActivity())
	}
	return len(idle)
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := m.opts.Playback.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			m.ReapIdle(m.opts.Playback.Clock.Now())
		}
	}
}

// Stats reports the number of live sessions.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"active_sessions": len(m.sessions),
	}
}

// onEvent runs on a session loop, so the store write happens elsewhere.
func (m *Manager) onEvent(ev types.PlaybackEvent) {
	if ev.Type != types.EventCompleted || ev.Snapshot.UserID == "" {
		return
	}
	completion := &types.Completion{
		UserID:      ev.Snapshot.UserID,
		LessonID:    ev.Snapshot.LessonID,
		CompletedAt: ev.Timestamp,
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.CompletionTimeout)
		defer cancel()
		if err := m.store.MarkCompleted(ctx, completion); err != nil {
			m.log.Warn("failed to record completion", "session_id", ev.SessionID, "lesson_id", completion.LessonID, "error", err)
			return
		}
		m.log.Info("lesson completed", "session_id", ev.SessionID, "lesson_id", completion.LessonID, "user_id", completion.UserID)
	}()
}

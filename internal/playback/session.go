// Package playback drives a narrated lesson through its slides, one clip or
// fallback timer at a time.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lessoncast/internal/clock"
	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Observer receives every published event. It is called from the session
// loop and must not block.
type Observer func(types.PlaybackEvent)

// Options configures a Session.
type Options struct {
	UserID       string
	Resolver     interfaces.AudioResolver
	Player       interfaces.AudioPlayer
	Clock        clock.Clock
	Logger       *logger.Logger
	PollInterval time.Duration
	LoadTimeout  time.Duration
	Observers    []Observer
}

// DefaultOptions polls every 100ms and gives a clip 5s to start.
func DefaultOptions() Options {
	return Options{
		Clock:        clock.Real(),
		PollInterval: 100 * time.Millisecond,
		LoadTimeout:  5 * time.Second,
	}
}

// Session is the playback state machine for one lesson. All state below the
// loop marker is owned by the run goroutine; public methods post work to it.
type Session struct {
	id           string
	userID       string
	lesson       *types.Lesson
	resolver     interfaces.AudioResolver
	player       interfaces.AudioPlayer
	clock        clock.Clock
	log          *logger.Logger
	pollInterval time.Duration
	loadTimeout  time.Duration
	total        time.Duration

	requests chan request
	events   chan event
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once

	mu           sync.RWMutex
	observers    []Observer
	snapshot     types.PlaybackSnapshot
	lastActivity time.Time

	// loop
	index         int
	state         types.State
	elapsed       time.Duration
	offset        time.Duration
	slideProgress float64
	totalProgress float64
	baseline      time.Duration
	generation    uint64
	advanced      bool
	completed     bool
	clip          interfaces.Clip
	audioURL      string
	timer         clock.Timer
	loadTimer     clock.Timer
	cancelLoad    context.CancelFunc
	ticker        clock.Ticker
	armStop       chan struct{}
	runStart      time.Time
}

type request struct {
	fn    func()
	reply chan types.PlaybackSnapshot
}

type eventKind int

const (
	evLoaded eventKind = iota
	evLoadTimeout
	evClipEnded
	evTimerFired
)

type event struct {
	kind eventKind
	gen  uint64
	clip interfaces.Clip
	src  types.AudioSource
	err  error
}

// New builds a session at slide 0, idle, and starts its loop.
func New(id string, lesson *types.Lesson, opts Options) (*Session, error) {
	if lesson == nil || len(lesson.Slides) == 0 {
		return nil, types.ErrNoSlides
	}
	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaults.LoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Session{
		id:           id,
		userID:       opts.UserID,
		lesson:       lesson,
		resolver:     opts.Resolver,
		player:       opts.Player,
		clock:        opts.Clock,
		log:          opts.Logger.With("session_id", id, "lesson_id", lesson.ID),
		pollInterval: opts.PollInterval,
		loadTimeout:  opts.LoadTimeout,
		total:        lesson.TotalDuration(),
		requests:     make(chan request),
		events:       make(chan event, 16),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		observers:    append([]Observer(nil), opts.Observers...),
		state:        types.StateIdle,
	}
	s.snapshot = s.buildSnapshot()
	s.lastActivity = s.snapshot.UpdatedAt

	go s.run()
	return s, nil
}

func (s *Session) ID() string            { return s.id }
func (s *Session) UserID() string        { return s.userID }
func (s *Session) Lesson() *types.Lesson { return s.lesson }
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the latest published snapshot.
func (s *Session) State() types.PlaybackSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// LastActivity is the time of the last command.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Subscribe adds an observer for subsequent events.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Play starts or resumes narration at the current slide.
func (s *Session) Play(ctx context.Context) (types.PlaybackSnapshot, error) {
	return s.exec(ctx, s.play)
}

// Pause holds playback at its current position.
func (s *Session) Pause(ctx context.Context) (types.PlaybackSnapshot, error) {
	return s.exec(ctx, s.pause)
}

// NextSlide moves forward one slide; it is a no-op on the last slide.
func (s *Session) NextSlide(ctx context.Context) (types.PlaybackSnapshot, error) {
	return s.exec(ctx, func() {
		if s.index < len(s.lesson.Slides)-1 {
			s.goTo(s.index + 1)
		}
	})
}

// PreviousSlide moves back one slide; it is a no-op on the first slide.
func (s *Session) PreviousSlide(ctx context.Context) (types.PlaybackSnapshot, error) {
	return s.exec(ctx, func() {
		if s.index > 0 {
			s.goTo(s.index - 1)
		}
	})
}

// GoToSlide jumps to index n, clamped to the lesson.
func (s *Session) GoToSlide(ctx context.Context, n int) (types.PlaybackSnapshot, error) {
	return s.exec(ctx, func() { s.goTo(n) })
}

// Apply runs a client command.
func (s *Session) Apply(ctx context.Context, cmd types.Command) (types.PlaybackSnapshot, error) {
	if err := cmd.Validate(); err != nil {
		return s.State(), err
	}
	switch cmd.Type {
	case types.CommandPlay:
		return s.Play(ctx)
	case types.CommandPause:
		return s.Pause(ctx)
	case types.CommandNext:
		return s.NextSlide(ctx)
	case types.CommandPrevious:
		return s.PreviousSlide(ctx)
	default:
		return s.GoToSlide(ctx, cmd.Index)
	}
}

// Close stops any driver and ends the loop. Later commands return
// ErrSessionClosed.
func (s *Session) Close() {
	s.closing.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) exec(ctx context.Context, fn func()) (types.PlaybackSnapshot, error) {
	req := request{fn: fn, reply: make(chan types.PlaybackSnapshot, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return s.State(), ErrSessionClosed
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-s.done:
		return s.State(), ErrSessionClosed
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)

	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C()
		}

		select {
		case req := <-s.requests:
			req.fn()
			s.mu.Lock()
			s.lastActivity = s.clock.Now()
			s.mu.Unlock()
			s.flush()
			req.reply <- s.State()

		case ev := <-s.events:
			s.handle(ev)
			s.flush()

		case <-tick:
			s.poll()

		case <-s.quit:
			s.disarm()
			if s.state.IsPlaying() {
				s.state = types.StatePaused
			}
			s.publish(types.EventClosed)
			return
		}
	}
}

func (s *Session) handle(ev event) {
	if ev.gen != s.generation {
		if ev.clip != nil {
			ev.clip.Stop()
		}
		return
	}

	switch ev.kind {
	case evLoaded:
		s.finishLoad()
		if ev.err != nil {
			s.log.Warn("narration unavailable, using timer", "slide", s.index+1, "error", ev.err)
			s.armFallback()
			return
		}
		s.armClip(ev.clip, ev.src)

	case evLoadTimeout:
		if s.state != types.StateLoading {
			return
		}
		s.log.Warn("narration load timed out, using timer", "slide", s.index+1, "timeout", s.loadTimeout)
		s.disarm()
		s.armFallback()

	case evClipEnded:
		if ev.err != nil {
			s.log.Warn("narration clip failed mid-play, using timer", "slide", s.index+1, "error", ev.err)
			s.elapsed = s.measure()
			s.releaseClip(false)
			s.armFallback()
			return
		}
		s.advance()

	case evTimerFired:
		s.timer = nil
		s.advance()
	}
}

func (s *Session) play() {
	switch s.state {
	case types.StateIdle, types.StatePaused:
		s.startPlayback()
	case types.StateCompleted:
		s.moveTo(0)
		s.startPlayback()
	}
}

func (s *Session) pause() {
	if !s.state.IsPlaying() {
		return
	}
	if s.state != types.StateLoading {
		s.elapsed = s.measure()
		s.updateProgress()
	}
	s.disarm()
	s.state = types.StatePaused
}

func (s *Session) goTo(n int) {
	wasPlaying := s.state.IsPlaying()
	s.moveTo(n)
	switch {
	case wasPlaying:
		s.startPlayback()
	case s.state == types.StateCompleted:
		s.state = types.StateIdle
	}
}

// moveTo disarms everything and positions the session at the start of
// slide n, clamped.
func (s *Session) moveTo(n int) {
	if n < 0 {
		n = 0
	}
	if last := len(s.lesson.Slides) - 1; n > last {
		n = last
	}
	s.disarm()
	s.index = n
	s.elapsed = 0
	s.offset = 0
	s.slideProgress = 0
	s.advanced = false
	s.baseline = s.lesson.DurationBefore(n)
	s.totalProgress = s.ratio(s.baseline)
}

// advance moves past the current slide at most once per slide.
func (s *Session) advance() {
	if s.advanced {
		return
	}
	s.advanced = true

	if s.index >= len(s.lesson.Slides)-1 {
		s.disarm()
		s.state = types.StateCompleted
		s.elapsed = s.currentSlide().Duration()
		s.slideProgress = 1
		s.totalProgress = 1
		s.completed = true
		return
	}
	s.moveTo(s.index + 1)
	s.startPlayback()
}

// startPlayback resolves and starts the current slide's clip off-loop.
func (s *Session) startPlayback() {
	s.disarm()
	s.state = types.StateLoading

	if s.resolver == nil || s.player == nil {
		s.armFallback()
		return
	}

	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelLoad = cancel
	s.loadTimer = s.clock.AfterFunc(s.loadTimeout, func() {
		cancel()
		s.post(event{kind: evLoadTimeout, gen: gen})
	})

	go s.load(ctx, gen, s.index, s.elapsed)
}

func (s *Session) load(ctx context.Context, gen uint64, index int, offset time.Duration) {
	src, ok, err := s.resolver.ResolveAudio(ctx, s.lesson, index)
	if err == nil && !ok {
		err = ErrNoAudio
	}

	var clip interfaces.Clip
	if err == nil {
		clip, err = s.player.Start(ctx, src, offset)
		if err != nil {
			err = fmt.Errorf("start %s: %w", src.URL, err)
		}
	}
	if err == nil && ctx.Err() != nil {
		clip.Stop()
		clip, err = nil, ErrLoadTimeout
	}

	s.post(event{kind: evLoaded, gen: gen, clip: clip, src: src, err: err})
}

func (s *Session) post(ev event) {
	select {
	case <-s.done:
		if ev.clip != nil {
			ev.clip.Stop()
		}
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.done:
		if ev.clip != nil {
			ev.clip.Stop()
		}
	}
}

func (s *Session) finishLoad() {
	if s.loadTimer != nil {
		s.loadTimer.Stop()
		s.loadTimer = nil
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *Session) armClip(clip interfaces.Clip, src types.AudioSource) {
	s.stopTimer()
	s.clip = clip
	s.audioURL = src.URL
	s.offset = s.elapsed
	s.runStart = s.clock.Now()
	s.state = types.StatePlayingAudio

	gen := s.generation
	stop := make(chan struct{})
	s.armStop = stop
	go func() {
		select {
		case <-clip.Done():
			s.post(event{kind: evClipEnded, gen: gen, err: clip.Err()})
		case <-stop:
		}
	}()
	s.startTicker()
}

// armFallback times the rest of the slide from its estimated duration.
func (s *Session) armFallback() {
	s.releaseClip(true)
	s.stopTimer()

	remaining := s.currentSlide().Duration() - s.elapsed
	if remaining < 0 {
		remaining = 0
	}
	gen := s.generation
	s.timer = s.clock.AfterFunc(remaining, func() {
		s.post(event{kind: evTimerFired, gen: gen})
	})
	s.audioURL = ""
	s.offset = s.elapsed
	s.runStart = s.clock.Now()
	s.state = types.StatePlayingFallback
	s.startTicker()
}

// disarm cancels any in-flight load and stops the clip and timer. Bumping
// the generation makes every callback already in flight stale.
func (s *Session) disarm() {
	s.generation++
	s.finishLoad()
	s.releaseClip(true)
	s.stopTimer()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.audioURL = ""
}

func (s *Session) releaseClip(stop bool) {
	if s.armStop != nil {
		close(s.armStop)
		s.armStop = nil
	}
	if s.clip != nil {
		if stop {
			s.clip.Stop()
		}
		s.clip = nil
	}
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) startTicker() {
	if s.ticker == nil {
		s.ticker = s.clock.NewTicker(s.pollInterval)
	}
}

// poll refreshes progress and advances when the slide has run its course.
func (s *Session) poll() {
	if s.state != types.StatePlayingAudio && s.state != types.StatePlayingFallback {
		return
	}
	s.elapsed = s.measure()
	s.updateProgress()
	if s.slideProgress >= 1 {
		s.advance()
		s.flush()
		return
	}
	s.publish(types.EventProgress)
}

// measure returns how far into the current slide playback has reached.
func (s *Session) measure() time.Duration {
	switch {
	case s.clip != nil:
		return s.clip.Position()
	case s.state == types.StatePlayingFallback:
		return s.offset + s.clock.Now().Sub(s.runStart)
	default:
		return s.elapsed
	}
}

func (s *Session) updateProgress() {
	slide := s.currentSlide()
	var p float64
	if s.clip != nil && s.clip.Duration() > 0 {
		p = float64(s.elapsed) / float64(s.clip.Duration())
	} else if slide.Duration() > 0 {
		p = float64(s.elapsed) / float64(slide.Duration())
	} else {
		p = 1
	}
	s.slideProgress = clamp01(p)

	total := s.ratio(s.baseline + time.Duration(s.slideProgress*float64(slide.Duration())))
	if total > s.totalProgress {
		s.totalProgress = total
	}
}

func (s *Session) ratio(d time.Duration) float64 {
	if s.total <= 0 {
		return 0
	}
	return clamp01(float64(d) / float64(s.total))
}

func (s *Session) currentSlide() types.Slide {
	return s.lesson.Slides[s.index]
}

// flush publishes a completion once, or a state event when the snapshot
// changed.
func (s *Session) flush() {
	if s.completed {
		s.completed = false
		s.publish(types.EventCompleted)
		return
	}
	prev := s.State()
	next := s.buildSnapshot()
	if prev.CurrentSlideIndex != next.CurrentSlideIndex || prev.State != next.State ||
		prev.SlideProgress != next.SlideProgress || prev.TotalProgress != next.TotalProgress ||
		prev.AudioURL != next.AudioURL {
		s.publish(types.EventState)
		return
	}
	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
}

func (s *Session) publish(t types.EventType) {
	snap := s.buildSnapshot()
	s.mu.Lock()
	s.snapshot = snap
	observers := s.observers
	s.mu.Unlock()

	ev := types.PlaybackEvent{Type: t, SessionID: s.id, Snapshot: snap, Timestamp: snap.UpdatedAt}
	for _, o := range observers {
		o(ev)
	}
}

func (s *Session) buildSnapshot() types.PlaybackSnapshot {
	return types.PlaybackSnapshot{
		SessionID:           s.id,
		LessonID:            s.lesson.ID,
		UserID:              s.userID,
		CurrentSlideIndex:   s.index,
		SlideCount:          len(s.lesson.Slides),
		PlayState:           s.state.PlayState(),
		State:               s.state,
		SlideProgress:       s.slideProgress,
		TotalProgress:       s.totalProgress,
		AudioFallbackActive: s.state == types.StatePlayingFallback,
		AudioURL:            s.audioURL,
		SlideElapsedMs:      s.elapsed.Milliseconds(),
		Generation:          s.generation,
		UpdatedAt:           s.clock.Now(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

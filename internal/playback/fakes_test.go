package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lessoncast/internal/clock"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func lessonWithDurations(ms ...int64) *types.Lesson {
	l := &types.Lesson{ID: "lesson-test", Order: 1, Title: "Test"}
	for i, d := range ms {
		l.Slides = append(l.Slides, types.Slide{
			Number:              i + 1,
			Text:                fmt.Sprintf("slide %d", i+1),
			EstimatedDurationMs: d,
		})
	}
	return l
}

// fakeResolver maps every slide to /audio/lesson1/slide{n}.mp3 unless the
// slide is listed as absent.
type fakeResolver struct {
	absent map[int]bool
	err    error
}

func (r *fakeResolver) ResolveAudio(ctx context.Context, lesson *types.Lesson, index int) (types.AudioSource, bool, error) {
	if r.err != nil {
		return types.AudioSource{}, false, r.err
	}
	if r.absent[index] {
		return types.AudioSource{}, false, nil
	}
	return types.AudioSource{URL: clipURL(index)}, true, nil
}

func clipURL(index int) string {
	return fmt.Sprintf("/audio/lesson1/slide%d.mp3", index+1)
}

// fakePlayer plays clips against a manual clock.
type fakePlayer struct {
	clock     *clock.Manual
	durations map[string]time.Duration
	failStart map[string]error
	failAt    map[string]time.Duration

	// gate, when set, holds Start until closed and then succeeds even if
	// the caller's context was cancelled.
	gate chan struct{}

	mu      sync.Mutex
	clips   []*fakeClip
	started chan *fakeClip
}

func newFakePlayer(c *clock.Manual, lesson *types.Lesson) *fakePlayer {
	p := &fakePlayer{
		clock:     c,
		durations: make(map[string]time.Duration),
		failStart: make(map[string]error),
		failAt:    make(map[string]time.Duration),
		started:   make(chan *fakeClip, 64),
	}
	for i, s := range lesson.Slides {
		p.durations[clipURL(i)] = s.Duration()
	}
	return p
}

func (p *fakePlayer) Start(ctx context.Context, src types.AudioSource, offset time.Duration) (interfaces.Clip, error) {
	if p.gate != nil {
		<-p.gate
	}
	if err := p.failStart[src.URL]; err != nil {
		return nil, err
	}

	c := &fakeClip{
		clock:    p.clock,
		url:      src.URL,
		duration: p.durations[src.URL],
		offset:   offset,
		start:    p.clock.Now(),
		done:     make(chan struct{}),
	}
	end := c.duration - offset
	var failErr error
	if at, ok := p.failAt[src.URL]; ok && at-offset < end {
		end = at - offset
		failErr = errors.New("decode error")
	}
	c.timer = p.clock.AfterFunc(end, func() { c.finish(failErr) })

	p.mu.Lock()
	p.clips = append(p.clips, c)
	p.mu.Unlock()
	p.started <- c
	return c, nil
}

// active counts clips that are neither stopped nor finished.
func (p *fakePlayer) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.clips {
		if c.isActive() {
			n++
		}
	}
	return n
}

type fakeClip struct {
	clock    *clock.Manual
	url      string
	duration time.Duration
	offset   time.Duration
	start    time.Time
	timer    clock.Timer
	done     chan struct{}

	mu      sync.Mutex
	stopped bool
	ended   bool
	frozen  time.Duration
	err     error
}

func (c *fakeClip) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.ended {
		return
	}
	c.frozen = c.positionLocked()
	c.ended = true
	c.err = err
	close(c.done)
}

func (c *fakeClip) Done() <-chan struct{} { return c.done }

func (c *fakeClip) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeClip) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *fakeClip) positionLocked() time.Duration {
	if c.stopped || c.ended {
		return c.frozen
	}
	pos := c.offset + c.clock.Now().Sub(c.start)
	if pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *fakeClip) Duration() time.Duration { return c.duration }

func (c *fakeClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.ended {
		c.stopped = true
		return
	}
	c.frozen = c.positionLocked()
	c.stopped = true
	c.timer.Stop()
}

func (c *fakeClip) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped && !c.ended
}

func (c *fakeClip) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// recorder collects observed events.
type recorder struct {
	mu     sync.Mutex
	events []types.PlaybackEvent
}

func (r *recorder) observe(ev types.PlaybackEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(t types.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) indexes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, ev := range r.events {
		out = append(out, ev.Snapshot.CurrentSlideIndex)
	}
	return out
}

type harness struct {
	t       *testing.T
	clock   *clock.Manual
	player  *fakePlayer
	rec     *recorder
	session *Session
}

func newHarness(t *testing.T, lesson *types.Lesson, resolver interfaces.AudioResolver, configure func(p *fakePlayer)) *harness {
	t.Helper()
	c := clock.NewManual(epoch)
	p := newFakePlayer(c, lesson)
	if configure != nil {
		configure(p)
	}
	rec := &recorder{}
	s, err := New("sess-1", lesson, Options{
		UserID:       "learner1",
		Resolver:     resolver,
		Player:       p,
		Clock:        c,
		PollInterval: 100 * time.Millisecond,
		LoadTimeout:  5 * time.Second,
		Observers:    []Observer{rec.observe},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Close)
	return &harness{t: t, clock: c, player: p, rec: rec, session: s}
}

// waitFor polls the published snapshot until cond holds.
func (h *harness) waitFor(desc string, cond func(types.PlaybackSnapshot) bool) types.PlaybackSnapshot {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := h.session.State()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out waiting for %s; last snapshot %+v", desc, snap)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitState(index int, state types.State) types.PlaybackSnapshot {
	h.t.Helper()
	return h.waitFor(fmt.Sprintf("slide %d %s", index, state), func(s types.PlaybackSnapshot) bool {
		return s.CurrentSlideIndex == index && s.State == state
	})
}

// settle lets in-flight events reach the loop.
func (h *harness) settle() {
	time.Sleep(20 * time.Millisecond)
	_, _ = h.session.exec(context.Background(), func() {})
}

// armed counts drivers as seen from inside the loop.
func (h *harness) armed() int {
	n := 0
	_, err := h.session.exec(context.Background(), func() {
		if h.session.clip != nil {
			n++
		}
		if h.session.timer != nil {
			n++
		}
	})
	if err != nil {
		h.t.Fatalf("inspect failed: %v", err)
	}
	return n
}

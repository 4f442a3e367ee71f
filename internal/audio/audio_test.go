package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lessoncast/internal/clock"
	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	sizes map[string]int64
	stats int
	err   error
}

func (m *memStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[key] = int64(len(data))
	return m.PublicURL(key), nil
}

func (m *memStore) Stat(ctx context.Context, key string) (types.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats++
	if m.err != nil {
		return types.Asset{}, m.err
	}
	size, ok := m.sizes[key]
	if !ok {
		return types.Asset{}, interfaces.ErrAssetNotFound
	}
	return types.Asset{Key: key, Size: size}, nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]types.Asset, error) { return nil, nil }
func (m *memStore) Delete(ctx context.Context, key string) error                   { return nil }
func (m *memStore) PublicURL(key string) string                                    { return "/audio/" + key }

func (m *memStore) statCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func testLesson() *types.Lesson {
	return &types.Lesson{
		ID:    "fractions",
		Order: 3,
		Slides: []types.Slide{
			{Number: 1, Text: "one"},
			{Number: 2, Text: "two", AudioURL: "https://cdn.example.com/custom.mp3"},
			{Number: 3, Text: "three"},
		},
	}
}

func TestKey(t *testing.T) {
	if got := Key(3, 12); got != "lesson3/slide12.mp3" {
		t.Errorf("Key() = %q", got)
	}
	if got := LessonPrefix(3); got != "lesson3/" {
		t.Errorf("LessonPrefix() = %q", got)
	}
}

func TestResolver_ResolveAudio(t *testing.T) {
	store := &memStore{sizes: map[string]int64{"lesson3/slide1.mp3": 32000, "lesson3/slide2.mp3": 16000}}
	r := NewResolver(store, time.Minute, clock.NewManual(epoch), logger.Nop())
	lesson := testLesson()
	ctx := context.Background()

	src, ok, err := r.ResolveAudio(ctx, lesson, 0)
	if err != nil || !ok {
		t.Fatalf("slide 1 = (%v, %v)", ok, err)
	}
	if src.URL != "/audio/lesson3/slide1.mp3" || src.Size != 32000 {
		t.Errorf("slide 1 source = %+v", src)
	}

	src, ok, _ = r.ResolveAudio(ctx, lesson, 1)
	if !ok || src.URL != "https://cdn.example.com/custom.mp3" || src.Size != 16000 {
		t.Errorf("explicit URL should win and keep the stored size: %+v", src)
	}

	if _, ok, err := r.ResolveAudio(ctx, lesson, 2); ok || err != nil {
		t.Errorf("missing clip should be absent without error, got (%v, %v)", ok, err)
	}

	if _, _, err := r.ResolveAudio(ctx, lesson, 3); !errors.Is(err, ErrSlideOutOfRange) {
		t.Errorf("expected ErrSlideOutOfRange, got %v", err)
	}
}

func TestResolver_ExplicitURLCarriesEstimate(t *testing.T) {
	store := &memStore{sizes: map[string]int64{}}
	r := NewResolver(store, time.Minute, clock.NewManual(epoch), logger.Nop())
	lesson := testLesson()
	lesson.Slides[1].EstimatedDurationMs = 4000

	src, ok, err := r.ResolveAudio(context.Background(), lesson, 1)
	if err != nil || !ok {
		t.Fatalf("explicit url = (%v, %v)", ok, err)
	}
	if src.Size != 0 || src.Estimate != 4*time.Second {
		t.Errorf("source = %+v, want unknown size with 4s estimate", src)
	}
}

func TestResolver_ExplicitURLSurvivesLookupError(t *testing.T) {
	store := &memStore{sizes: map[string]int64{}, err: errors.New("backend down")}
	r := NewResolver(store, time.Minute, clock.NewManual(epoch), logger.Nop())
	lesson := testLesson()
	lesson.Slides[1].EstimatedDurationMs = 2500

	src, ok, err := r.ResolveAudio(context.Background(), lesson, 1)
	if err != nil || !ok {
		t.Fatalf("explicit url should resolve despite lookup error, got (%v, %v)", ok, err)
	}
	if src.URL != "https://cdn.example.com/custom.mp3" || src.Estimate != 2500*time.Millisecond {
		t.Errorf("source = %+v", src)
	}
}

func TestResolver_CachesHitsAndMisses(t *testing.T) {
	store := &memStore{sizes: map[string]int64{"lesson3/slide1.mp3": 100}}
	c := clock.NewManual(epoch)
	r := NewResolver(store, 30*time.Second, c, logger.Nop())
	lesson := testLesson()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, _ = r.ResolveAudio(ctx, lesson, 0)
		_, _, _ = r.ResolveAudio(ctx, lesson, 2)
	}
	if n := store.statCount(); n != 2 {
		t.Errorf("Stat called %d times, want 2", n)
	}

	c.Advance(31 * time.Second)
	_, _, _ = r.ResolveAudio(ctx, lesson, 2)
	if n := store.statCount(); n != 3 {
		t.Errorf("expired entry should be refreshed, Stat calls = %d", n)
	}

	_, _ = store.Upload(ctx, "lesson3/slide3.mp3", make([]byte, 10), "audio/mpeg")
	if _, ok, _ := r.ResolveAudio(ctx, lesson, 2); ok {
		t.Error("cached miss should still be served before invalidation")
	}
	r.Invalidate(LessonPrefix(3))
	if _, ok, _ := r.ResolveAudio(ctx, lesson, 2); !ok {
		t.Error("invalidated lookup should see the new clip")
	}
}

func TestResolver_ErrorsAreNotCached(t *testing.T) {
	store := &memStore{sizes: map[string]int64{}, err: errors.New("backend down")}
	r := NewResolver(store, time.Minute, clock.NewManual(epoch), logger.Nop())

	for i := 0; i < 2; i++ {
		if _, ok, err := r.ResolveAudio(context.Background(), testLesson(), 0); err == nil || ok {
			t.Fatalf("expected error, got (%v, %v)", ok, err)
		}
	}
	if n := store.statCount(); n != 2 {
		t.Errorf("Stat called %d times, want 2", n)
	}
}

func TestDurationFor(t *testing.T) {
	tests := []struct {
		size int64
		kbps int
		want time.Duration
	}{
		{32000, 128, 2 * time.Second},
		{16000, 128, time.Second},
		{24000, 64, 3 * time.Second},
		{0, 128, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := DurationFor(tt.size, tt.kbps); got != tt.want {
			t.Errorf("DurationFor(%d, %d) = %v, want %v", tt.size, tt.kbps, got, tt.want)
		}
	}
}

func TestVirtualPlayer_PlaysToEnd(t *testing.T) {
	c := clock.NewManual(epoch)
	p := NewVirtualPlayer(c, 128)

	clip, err := p.Start(context.Background(), types.AudioSource{URL: "/a.mp3", Size: 32000}, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if clip.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v", clip.Duration())
	}

	c.Advance(time.Second)
	if clip.Position() != 1500*time.Millisecond {
		t.Errorf("Position() = %v, want 1.5s", clip.Position())
	}
	select {
	case <-clip.Done():
		t.Fatal("clip ended early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-clip.Done():
	default:
		t.Fatal("clip should have ended")
	}
	if clip.Err() != nil || clip.Position() != 2*time.Second {
		t.Errorf("after end: err=%v pos=%v", clip.Err(), clip.Position())
	}
}

func TestVirtualPlayer_Stop(t *testing.T) {
	c := clock.NewManual(epoch)
	p := NewVirtualPlayer(c, 128)

	clip, _ := p.Start(context.Background(), types.AudioSource{Size: 16000}, 0)
	c.Advance(300 * time.Millisecond)
	clip.Stop()
	c.Advance(time.Second)

	select {
	case <-clip.Done():
		t.Error("stopped clip must not signal Done")
	default:
	}
	if clip.Position() != 300*time.Millisecond {
		t.Errorf("Position after Stop = %v", clip.Position())
	}
	if c.Pending() != 0 {
		t.Errorf("stop should cancel the end timer, %d pending", c.Pending())
	}
}

func TestVirtualPlayer_EstimateTimesUnknownSize(t *testing.T) {
	c := clock.NewManual(epoch)
	p := NewVirtualPlayer(c, 128)

	clip, err := p.Start(context.Background(), types.AudioSource{URL: "/custom.mp3", Estimate: 3 * time.Second}, time.Second)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if d := clip.Duration(); d != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", d)
	}

	c.Advance(1500 * time.Millisecond)
	select {
	case <-clip.Done():
		t.Fatal("clip ended early")
	default:
	}
	c.Advance(600 * time.Millisecond)
	select {
	case <-clip.Done():
	default:
		t.Fatal("clip should have ended after the estimate")
	}
}

func TestVirtualPlayer_SizeWinsOverEstimate(t *testing.T) {
	p := NewVirtualPlayer(clock.NewManual(epoch), 128)
	clip, err := p.Start(context.Background(), types.AudioSource{Size: 16000, Estimate: 9 * time.Second}, 0)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if d := clip.Duration(); d != time.Second {
		t.Errorf("Duration() = %v, want 1s from size", d)
	}
}

func TestVirtualPlayer_Failures(t *testing.T) {
	p := NewVirtualPlayer(clock.NewManual(epoch), 128)

	if _, err := p.Start(context.Background(), types.AudioSource{URL: "/x.mp3"}, 0); !errors.Is(err, ErrUnknownLength) {
		t.Errorf("expected ErrUnknownLength, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Start(ctx, types.AudioSource{Size: 100}, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

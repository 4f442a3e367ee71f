// Package audio locates narration clips and plays them on the server's clock.
package audio

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"lessoncast/internal/clock"
	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Key is the asset key of a slide's narration clip.
func Key(lessonOrder, slideNumber int) string {
	return fmt.Sprintf("lesson%d/slide%d.mp3", lessonOrder, slideNumber)
}

// QuestionKey is the asset key of a quiz question's narration clip.
func QuestionKey(lessonOrder, questionNumber int) string {
	return fmt.Sprintf("lesson%d/question%d.mp3", lessonOrder, questionNumber)
}

// IsQuestionKey reports whether key names a question clip.
func IsQuestionKey(key string) bool {
	return strings.HasPrefix(path.Base(key), "question")
}

// LessonPrefix is the key prefix shared by all clips of a lesson.
func LessonPrefix(lessonOrder int) string {
	return fmt.Sprintf("lesson%d/", lessonOrder)
}

type cacheEntry struct {
	asset   types.Asset
	found   bool
	expires time.Time
}

// Resolver maps slides to clips in an AssetStore, caching lookups for a
// short TTL. Both hits and misses are cached; errors are not.
type Resolver struct {
	store interfaces.AssetStore
	ttl   time.Duration
	clock clock.Clock
	log   *logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewResolver(store interfaces.AssetStore, ttl time.Duration, c clock.Clock, log *logger.Logger) *Resolver {
	if c == nil {
		c = clock.Real()
	}
	return &Resolver{
		store: store,
		ttl:   ttl,
		clock: c,
		log:   log.With("service", "AudioResolver"),
		cache: make(map[string]cacheEntry),
	}
}

// ResolveAudio prefers the slide's explicit URL and otherwise looks for
// lesson{Order}/slide{Number}.mp3. A lookup failure does not hide an
// explicit URL; the clip is then timed from the slide estimate.
func (r *Resolver) ResolveAudio(ctx context.Context, lesson *types.Lesson, slideIndex int) (types.AudioSource, bool, error) {
	if slideIndex < 0 || slideIndex >= len(lesson.Slides) {
		return types.AudioSource{}, false, fmt.Errorf("%w: %d", ErrSlideOutOfRange, slideIndex)
	}
	slide := lesson.Slides[slideIndex]
	key := Key(lesson.Order, slide.Number)

	asset, found, err := r.stat(ctx, key)
	if err != nil {
		if slide.AudioURL == "" {
			return types.AudioSource{}, false, err
		}
		r.log.Warn("using explicit audio url without size", "key", key, "error", err)
		found = false
	}

	switch {
	case slide.AudioURL != "":
		src := types.AudioSource{URL: slide.AudioURL, Estimate: slide.Duration()}
		if found {
			src.Key, src.Size = key, asset.Size
		}
		return src, true, nil
	case found:
		url := asset.URL
		if url == "" {
			url = r.store.PublicURL(key)
		}
		return types.AudioSource{URL: url, Key: key, Size: asset.Size}, true, nil
	default:
		return types.AudioSource{}, false, nil
	}
}

func (r *Resolver) stat(ctx context.Context, key string) (types.Asset, bool, error) {
	now := r.clock.Now()

	r.mu.Lock()
	entry, ok := r.cache[key]
	r.mu.Unlock()
	if ok && now.Before(entry.expires) {
		return entry.asset, entry.found, nil
	}

	asset, err := r.store.Stat(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, interfaces.ErrAssetNotFound) {
		r.log.Debug("asset lookup failed", "key", key, "error", err)
		return types.Asset{}, false, err
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{asset: asset, found: found, expires: now.Add(r.ttl)}
		r.mu.Unlock()
	}
	return asset, found, nil
}

// Invalidate drops cached lookups under prefix. An empty prefix clears all.
func (r *Resolver) Invalidate(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if strings.HasPrefix(k, prefix) {
			delete(r.cache, k)
		}
	}
}

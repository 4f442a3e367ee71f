// Package pipeline renders narration for a lesson: it synthesizes each
// slide, uploads the clip, records its URL and optionally redeploys the
// site.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"lessoncast/internal/audio"
	"lessoncast/internal/logger"
	"lessoncast/internal/tts"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Item stages reported on failure.
const (
	StagePrepare    = "prepare"
	StageSynthesize = "synthesize"
	StageUpload     = "upload"
	StageRecord     = "record"
	StageCancelled  = "cancelled"
)

const audioContentType = "audio/mpeg"

// CacheInvalidator drops cached lookups under a key prefix.
type CacheInvalidator interface {
	Invalidate(prefix string)
}

type Options struct {
	// InterRequestDelay spaces synthesis requests to stay under provider
	// rate limits.
	InterRequestDelay time.Duration
	ClearDelay        time.Duration
	DefaultVoiceID    string
}

// Request describes one generation run.
type Request struct {
	LessonID string `json:"lesson_id"`
	VoiceID  string `json:"voice_id,omitempty"`
	Clear    bool   `json:"clear,omitempty"`
	Deploy   bool   `json:"deploy,omitempty"`
	// Slides limits the run to these slide numbers. Empty means all.
	Slides []int `json:"slides,omitempty"`
}

type Service struct {
	store    interfaces.LessonStore
	synth    interfaces.Synthesizer
	assets   interfaces.AssetStore
	deployer interfaces.Deployer
	cache    CacheInvalidator
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

// New wires the pipeline. synth, deployer and cache may be nil.
func New(store interfaces.LessonStore, synth interfaces.Synthesizer, assets interfaces.AssetStore,
	deployer interfaces.Deployer, cache CacheInvalidator, opts Options, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		synth:    synth,
		assets:   assets,
		deployer: deployer,
		cache:    cache,
		opts:     opts,
		log:      log.With("service", "Pipeline"),
		now:      time.Now,
	}
}

// Synthesize prepares text for speech and converts it to mp3 bytes.
func (s *Service) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if s.synth == nil {
		return nil, fmt.Errorf("%w: synthesizer", interfaces.ErrNotConfigured)
	}
	prepared, err := tts.PrepareText(text)
	if err != nil {
		return nil, err
	}
	if voiceID == "" {
		voiceID = s.opts.DefaultVoiceID
	}
	return s.synth.Synthesize(ctx, prepared, voiceID)
}

// Upload stores the clip for a slide and returns its public URL.
func (s *Service) Upload(ctx context.Context, lessonOrder, slideNumber int, data []byte) (string, error) {
	return s.assets.Upload(ctx, audio.Key(lessonOrder, slideNumber), data, audioContentType)
}

// ClearExisting deletes every slide mp3 stored for the lesson and returns
// how many were removed. Question clips are kept. A lesson without clips
// clears zero.
func (s *Service) ClearExisting(ctx context.Context, lessonOrder int) (int, error) {
	deleted, err := s.clear(ctx, lessonOrder, func(key string) bool { return !audio.IsQuestionKey(key) })
	if err == nil {
		s.log.Info("lesson audio cleared", "lesson_order", lessonOrder, "deleted", deleted)
	}
	return deleted, err
}

// ClearQuestionAudio deletes the lesson's question clips.
func (s *Service) ClearQuestionAudio(ctx context.Context, lessonOrder int) (int, error) {
	deleted, err := s.clear(ctx, lessonOrder, audio.IsQuestionKey)
	if err == nil {
		s.log.Info("question audio cleared", "lesson_order", lessonOrder, "deleted", deleted)
	}
	return deleted, err
}

func (s *Service) clear(ctx context.Context, lessonOrder int, match func(key string) bool) (int, error) {
	prefix := audio.LessonPrefix(lessonOrder)
	assets, err := s.assets.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", prefix, err)
	}

	deleted := 0
	for _, a := range assets {
		if !strings.EqualFold(path.Ext(a.Key), ".mp3") || !match(a.Key) {
			continue
		}
		if deleted > 0 {
			if err := sleep(ctx, s.opts.ClearDelay); err != nil {
				return deleted, err
			}
		}
		if err := s.assets.Delete(ctx, a.Key); err != nil {
			s.invalidate(prefix)
			return deleted, fmt.Errorf("delete %s: %w", a.Key, err)
		}
		deleted++
	}
	s.invalidate(prefix)
	return deleted, nil
}

// TriggerDeploy asks the hosting platform to rebuild.
func (s *Service) TriggerDeploy(ctx context.Context) error {
	if s.deployer == nil {
		return fmt.Errorf("%w: deployer", interfaces.ErrNotConfigured)
	}
	return s.deployer.TriggerDeploy(ctx)
}

// Run generates audio for the requested slides one at a time. A failing
// slide is reported and the run moves on; nothing already uploaded is
// rolled back. Errors are returned only when the run cannot start.
func (s *Service) Run(ctx context.Context, req Request) (*types.PipelineReport, error) {
	if s.synth == nil {
		return nil, fmt.Errorf("%w: synthesizer", interfaces.ErrNotConfigured)
	}
	if req.Clear && len(req.Slides) > 0 {
		return nil, ErrClearWithSubset
	}
	lesson, err := s.store.FetchLessonDetail(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	selected, err := selectSlides(lesson, req.Slides)
	if err != nil {
		return nil, err
	}

	report := &types.PipelineReport{
		RunID:       uuid.NewString(),
		LessonID:    lesson.ID,
		LessonOrder: lesson.Order,
		Items:       make([]types.ItemResult, 0, len(selected)),
		StartedAt:   s.now(),
	}
	log := s.log.With("run_id", report.RunID, "lesson_id", lesson.ID)
	log.Info("generation started", "slides", len(selected), "clear", req.Clear, "deploy", req.Deploy)

	if req.Clear {
		n, err := s.ClearExisting(ctx, lesson.Order)
		report.Cleared = n
		if err != nil {
			return nil, fmt.Errorf("clear existing audio: %w", err)
		}
		if err := s.store.ClearSlideAudio(ctx, lesson.ID); err != nil {
			return nil, fmt.Errorf("clear slide audio: %w", err)
		}
	}

	for i, slide := range selected {
		if i > 0 {
			if err := sleep(ctx, s.opts.InterRequestDelay); err != nil {
				report.Items = append(report.Items, cancelled(selected[i:], err)...)
				break
			}
		}
		item := s.generateSlide(ctx, lesson, slide, req.VoiceID)
		if item.Status == types.ItemSucceeded {
			report.Succeeded++
		} else {
			report.Failed++
			log.Warn("slide generation failed", "slide", slide.Number, "stage", item.Stage, "error", item.Error)
		}
		report.Items = append(report.Items, item)
	}
	s.invalidate(audio.LessonPrefix(lesson.Order))

	if req.Deploy && report.Succeeded > 0 && ctx.Err() == nil {
		if err := s.TriggerDeploy(ctx); err != nil {
			report.DeployError = err.Error()
			log.Warn("deploy trigger failed", "error", err)
		} else {
			report.Deployed = true
		}
	}

	report.FinishedAt = s.now()
	if err := s.store.RecordPipelineRun(context.WithoutCancel(ctx), report); err != nil {
		log.Error("failed to record pipeline run", "error", err)
	}
	log.Info("generation finished", "succeeded", report.Succeeded, "failed", report.Failed,
		"deployed", report.Deployed, "took", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (s *Service) generateSlide(ctx context.Context, lesson *types.Lesson, slide types.Slide, voiceID string) types.ItemResult {
	item := types.ItemResult{SlideNumber: slide.Number}
	fail := func(stage string, err error) types.ItemResult {
		item.Status = types.ItemFailed
		item.Stage = stage
		item.Error = err.Error()
		return item
	}

	if _, err := tts.PrepareText(slide.Text); err != nil {
		return fail(StagePrepare, err)
	}
	data, err := s.Synthesize(ctx, slide.Text, voiceID)
	if err != nil {
		return fail(StageSynthesize, err)
	}
	url, err := s.Upload(ctx, lesson.Order, slide.Number, data)
	if err != nil {
		return fail(StageUpload, err)
	}
	if err := s.store.SetSlideAudio(ctx, lesson.ID, slide.Number, url); err != nil {
		return fail(StageRecord, err)
	}

	item.Status = types.ItemSucceeded
	item.AudioURL = url
	item.Bytes = len(data)
	return item
}

func (s *Service) invalidate(prefix string) {
	if s.cache != nil {
		s.cache.Invalidate(prefix)
	}
}

func selectSlides(lesson *types.Lesson, numbers []int) ([]types.Slide, error) {
	if len(numbers) == 0 {
		return lesson.Slides, nil
	}
	seen := make(map[int]bool, len(numbers))
	out := make([]types.Slide, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(lesson.Slides) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSlide, n)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, lesson.Slides[n-1])
	}
	return out, nil
}

func cancelled(rest []types.Slide, err error) []types.ItemResult {
	out := make([]types.ItemResult, 0, len(rest))
	for _, sl := range rest {
		out = append(out, types.ItemResult{
			SlideNumber: sl.Number,
			Status:      types.ItemSkipped,
			Stage:       StageCancelled,
			Error:       err.Error(),
		})
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package interfaces

import (
	"context"
	"time"

	"lessoncast/pkg/types"
)

// AudioResolver maps a slide to its pre-rendered narration clip.
// Absent and failed resolutions are treated identically by playback.
type AudioResolver interface {
	ResolveAudio(ctx context.Context, lesson *types.Lesson, slideIndex int) (types.AudioSource, bool, error)
}

// Clip is an audio clip that has started playing.
type Clip interface {
	// Done is closed when the clip stops for any reason other than Stop.
	Done() <-chan struct{}

	// Err is nil after a natural end and describes the failure otherwise.
	Err() error

	Position() time.Duration

	// Duration is zero while the clip length is unknown.
	Duration() time.Duration

	Stop()
}

// AudioPlayer starts clips. Start blocks until the clip is playing or has
// failed to load, and must honour ctx cancellation.
type AudioPlayer interface {
	Start(ctx context.Context, src types.AudioSource, offset time.Duration) (Clip, error)
}

// Synthesizer converts narration text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// AssetStore holds generated narration clips.
type AssetStore interface {
	// Upload writes data under key, overwriting, and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Stat returns ErrAssetNotFound when key does not exist.
	Stat(ctx context.Context, key string) (types.Asset, error)

	// List returns the assets under prefix. A missing prefix is an empty list.
	List(ctx context.Context, prefix string) ([]types.Asset, error)

	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Deployer asks the hosting platform to rebuild the site after assets change.
type Deployer interface {
	TriggerDeploy(ctx context.Context) error
}

// LanguageModel answers a single prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "LESSONCAST_"

// LoadFromEnv returns the defaults overridden by LESSONCAST_* variables and
// the provider secrets.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	applyEnv(cfg)
	applySecrets(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	envString("DATABASE_PATH", &cfg.Database.Path)
	envDuration("DATABASE_TIMEOUT", &cfg.Database.Timeout)

	envInt("HTTP_PORT", &cfg.HTTP.Port)
	envString("HTTP_HOST", &cfg.HTTP.Host)
	envDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)

	envDuration("WEBSOCKET_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &cfg.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &cfg.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &cfg.WebSocket.BufferSize)

	envDuration("PLAYBACK_POLL_INTERVAL", &cfg.Playback.PollInterval)
	envDuration("PLAYBACK_LOAD_TIMEOUT", &cfg.Playback.LoadTimeout)
	envDuration("PLAYBACK_IDLE_TTL", &cfg.Playback.IdleTTL)
	envDuration("PLAYBACK_REAP_INTERVAL", &cfg.Playback.ReapInterval)
	envFloat("PLAYBACK_WORDS_PER_SECOND", &cfg.Playback.WordsPerSecond)
	envDuration("PLAYBACK_MIN_SLIDE_DURATION", &cfg.Playback.MinSlideDuration)

	envInt("AUDIO_BITRATE_KBPS", &cfg.Audio.BitrateKbps)
	envDuration("AUDIO_CACHE_TTL", &cfg.Audio.CacheTTL)

	envString("ASSETS_BACKEND", &cfg.Assets.Backend)
	envString("ASSETS_LOCAL_DIR", &cfg.Assets.LocalDir)
	envString("ASSETS_LOCAL_BASE_URL", &cfg.Assets.LocalBaseURL)
	envString("ASSETS_GITHUB_API_URL", &cfg.Assets.GitHubAPIURL)
	envString("ASSETS_GITHUB_OWNER", &cfg.Assets.GitHubOwner)
	envString("ASSETS_GITHUB_REPO", &cfg.Assets.GitHubRepo)
	envString("ASSETS_GITHUB_BRANCH", &cfg.Assets.GitHubBranch)
	envString("ASSETS_GITHUB_PATH_PREFIX", &cfg.Assets.GitHubPathPrefix)
	envString("ASSETS_GITHUB_BASE_URL", &cfg.Assets.GitHubBaseURL)
	envString("ASSETS_GCS_BUCKET", &cfg.Assets.GCSBucket)
	envString("ASSETS_GCS_PREFIX", &cfg.Assets.GCSPrefix)
	envString("ASSETS_GCS_PUBLIC_BASE_URL", &cfg.Assets.GCSPublicBaseURL)

	envString("ELEVENLABS_BASE_URL", &cfg.ElevenLabs.BaseURL)
	envString("ELEVENLABS_MODEL", &cfg.ElevenLabs.Model)
	envString("ELEVENLABS_VOICE_ID", &cfg.ElevenLabs.DefaultVoiceID)
	envFloat("ELEVENLABS_STABILITY", &cfg.ElevenLabs.Stability)
	envFloat("ELEVENLABS_SIMILARITY_BOOST", &cfg.ElevenLabs.SimilarityBoost)
	envDuration("ELEVENLABS_TIMEOUT", &cfg.ElevenLabs.Timeout)

	envString("ANTHROPIC_BASE_URL", &cfg.Anthropic.BaseURL)
	envString("ANTHROPIC_MODEL", &cfg.Anthropic.Model)
	envDuration("ANTHROPIC_TIMEOUT", &cfg.Anthropic.Timeout)

	envString("DEPLOY_PROVIDER", &cfg.Deploy.Provider)
	envString("RAILWAY_ENDPOINT", &cfg.Deploy.RailwayEndpoint)
	envString("RAILWAY_SERVICE_ID", &cfg.Deploy.RailwayServiceID)
	envString("RAILWAY_ENVIRONMENT_ID", &cfg.Deploy.RailwayEnvironmentID)

	envDuration("PIPELINE_INTER_REQUEST_DELAY", &cfg.Pipeline.InterRequestDelay)
	envDuration("PIPELINE_CLEAR_DELAY", &cfg.Pipeline.ClearDelay)
	envInt("PIPELINE_QUEUE_SIZE", &cfg.Pipeline.QueueSize)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_CHANNEL", &cfg.Redis.Channel)

	envString("LOG_MODE", &cfg.Log.Mode)
	envString("SEED_CATALOG", &cfg.Seed.CatalogPath)
}

// applySecrets reads credentials. They are never taken from the config file.
func applySecrets(cfg *Config) {
	cfg.ElevenLabs.APIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	cfg.Anthropic.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.Assets.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	cfg.Deploy.RailwayToken = strings.TrimSpace(os.Getenv("RAILWAY_API_TOKEN"))
	cfg.Admin.Key = strings.TrimSpace(os.Getenv(envPrefix + "ADMIN_KEY"))
}

func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + name))
	return v, v != ""
}

func envString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := lookup(name); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if v, ok := lookup(name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

package config

import (
	"fmt"
	"time"
)

// Asset backends.
const (
	AssetBackendLocal  = "local"
	AssetBackendGitHub = "github"
	AssetBackendGCS    = "gcs"
)

// Deploy providers.
const (
	DeployNone    = "none"
	DeployRailway = "railway"
)

type Config struct {
	Database   *DatabaseConfig   `json:"database"`
	HTTP       *HTTPConfig       `json:"http"`
	WebSocket  *WebSocketConfig  `json:"websocket"`
	Playback   *PlaybackConfig   `json:"playback"`
	Audio      *AudioConfig      `json:"audio"`
	Assets     *AssetsConfig     `json:"assets"`
	ElevenLabs *ElevenLabsConfig `json:"elevenlabs"`
	Anthropic  *AnthropicConfig  `json:"anthropic"`
	Deploy     *DeployConfig     `json:"deploy"`
	Pipeline   *PipelineConfig   `json:"pipeline"`
	Redis      *RedisConfig      `json:"redis"`
	Log        *LogConfig        `json:"log"`
	Admin      *AdminConfig      `json:"admin"`
	Seed       *SeedConfig       `json:"seed"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// PlaybackConfig tunes the server-side playback sessions.
type PlaybackConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
	LoadTimeout  time.Duration `json:"load_timeout"`
	IdleTTL      time.Duration `json:"idle_ttl"`
	ReapInterval time.Duration `json:"reap_interval"`

	// WordsPerSecond and MinSlideDuration derive slide estimates from text.
	WordsPerSecond   float64       `json:"words_per_second"`
	MinSlideDuration time.Duration `json:"min_slide_duration"`
}

// AudioConfig describes how narration clips are located and timed.
type AudioConfig struct {
	BitrateKbps int           `json:"bitrate_kbps"`
	CacheTTL    time.Duration `json:"cache_ttl"`
}

type AssetsConfig struct {
	Backend string `json:"backend"`

	LocalDir     string `json:"local_dir"`
	LocalBaseURL string `json:"local_base_url"`

	GitHubAPIURL     string `json:"github_api_url"`
	GitHubOwner      string `json:"github_owner"`
	GitHubRepo       string `json:"github_repo"`
	GitHubBranch     string `json:"github_branch"`
	GitHubPathPrefix string `json:"github_path_prefix"`
	GitHubBaseURL    string `json:"github_base_url"`
	GitHubToken      string `json:"-"`

	GCSBucket        string `json:"gcs_bucket"`
	GCSPrefix        string `json:"gcs_prefix"`
	GCSPublicBaseURL string `json:"gcs_public_base_url"`
}

type ElevenLabsConfig struct {
	BaseURL         string        `json:"base_url"`
	Model           string        `json:"model"`
	DefaultVoiceID  string        `json:"default_voice_id"`
	Stability       float64       `json:"stability"`
	SimilarityBoost float64       `json:"similarity_boost"`
	Timeout         time.Duration `json:"timeout"`
	APIKey          string        `json:"-"`
}

type AnthropicConfig struct {
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Version string        `json:"version"`
	Timeout time.Duration `json:"timeout"`
	APIKey  string        `json:"-"`
}

type DeployConfig struct {
	Provider             string `json:"provider"`
	RailwayEndpoint      string `json:"railway_endpoint"`
	RailwayServiceID     string `json:"railway_service_id"`
	RailwayEnvironmentID string `json:"railway_environment_id"`
	RailwayToken         string `json:"-"`
}

type PipelineConfig struct {
	InterRequestDelay time.Duration `json:"inter_request_delay"`
	ClearDelay        time.Duration `json:"clear_delay"`
	QueueSize         int           `json:"queue_size"`
}

// RedisConfig enables cross-instance event fan-out when Addr is set.
type RedisConfig struct {
	Addr    string `json:"addr"`
	Channel string `json:"channel"`
}

type LogConfig struct {
	Mode string `json:"mode"`
}

type AdminConfig struct {
	Key string `json:"-"`
}

// SeedConfig points at a YAML catalog imported on startup.
type SeedConfig struct {
	CatalogPath string `json:"catalog_path"`
}

// DefaultConfig returns settings for a single-node deployment serving
// narration from a local directory.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/lessoncast.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Playback: &PlaybackConfig{
			PollInterval:     100 * time.Millisecond,
			LoadTimeout:      5 * time.Second,
			IdleTTL:          30 * time.Minute,
			ReapInterval:     time.Minute,
			WordsPerSecond:   2.5,
			MinSlideDuration: 2 * time.Second,
		},
		Audio: &AudioConfig{
			BitrateKbps: 128,
			CacheTTL:    30 * time.Second,
		},
		Assets: &AssetsConfig{
			Backend:          AssetBackendLocal,
			LocalDir:         "./public/audio",
			LocalBaseURL:     "/audio",
			GitHubAPIURL:     "https://api.github.com",
			GitHubBranch:     "main",
			GitHubPathPrefix: "public/audio",
		},
		ElevenLabs: &ElevenLabsConfig{
			BaseURL:         "https://api.elevenlabs.io",
			Model:           "eleven_multilingual_v2",
			DefaultVoiceID:  "pNInz6obpgDQGcFmaJgB",
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Timeout:         60 * time.Second,
		},
		Anthropic: &AnthropicConfig{
			BaseURL: "https://api.anthropic.com",
			Model:   "claude-sonnet-4-20250514",
			Version: "2023-06-01",
			Timeout: 60 * time.Second,
		},
		Deploy: &DeployConfig{
			Provider:        DeployNone,
			RailwayEndpoint: "https://backboard.railway.app/graphql/v2",
		},
		Pipeline: &PipelineConfig{
			InterRequestDelay: time.Second,
			ClearDelay:        100 * time.Millisecond,
			QueueSize:         16,
		},
		Redis: &RedisConfig{
			Channel: "lessoncast.playback",
		},
		Log:   &LogConfig{Mode: "dev"},
		Admin: &AdminConfig{},
		Seed:  &SeedConfig{},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil || c.HTTP == nil || c.WebSocket == nil || c.Playback == nil ||
		c.Audio == nil || c.Assets == nil || c.ElevenLabs == nil || c.Anthropic == nil ||
		c.Deploy == nil || c.Pipeline == nil || c.Redis == nil || c.Log == nil ||
		c.Admin == nil || c.Seed == nil {
		return fmt.Errorf("all configuration sections are required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return fmt.Errorf("WebSocket ping interval must be shorter than read timeout")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Playback.PollInterval <= 0 || c.Playback.LoadTimeout <= 0 {
		return fmt.Errorf("playback poll interval and load timeout must be positive")
	}
	if c.Playback.IdleTTL <= 0 || c.Playback.ReapInterval <= 0 {
		return fmt.Errorf("playback idle TTL and reap interval must be positive")
	}
	if c.Playback.WordsPerSecond <= 0 {
		return fmt.Errorf("words per second must be positive")
	}
	if c.Playback.MinSlideDuration < 0 {
		return fmt.Errorf("minimum slide duration cannot be negative")
	}

	if c.Audio.BitrateKbps <= 0 {
		return fmt.Errorf("audio bitrate must be positive")
	}
	if c.Audio.CacheTTL < 0 {
		return fmt.Errorf("audio cache TTL cannot be negative")
	}

	switch c.Assets.Backend {
	case AssetBackendLocal:
		if c.Assets.LocalDir == "" {
			return fmt.Errorf("local asset directory cannot be empty")
		}
	case AssetBackendGitHub:
		if c.Assets.GitHubOwner == "" || c.Assets.GitHubRepo == "" || c.Assets.GitHubBranch == "" {
			return fmt.Errorf("github asset backend requires owner, repo and branch")
		}
	case AssetBackendGCS:
		if c.Assets.GCSBucket == "" {
			return fmt.Errorf("gcs asset backend requires a bucket")
		}
	default:
		return fmt.Errorf("unknown asset backend %q", c.Assets.Backend)
	}

	if c.ElevenLabs.Stability < 0 || c.ElevenLabs.Stability > 1 ||
		c.ElevenLabs.SimilarityBoost < 0 || c.ElevenLabs.SimilarityBoost > 1 {
		return fmt.Errorf("voice settings must be within [0,1]")
	}

	switch c.Deploy.Provider {
	case DeployNone:
	case DeployRailway:
		if c.Deploy.RailwayServiceID == "" {
			return fmt.Errorf("railway deploy requires a service ID")
		}
	default:
		return fmt.Errorf("unknown deploy provider %q", c.Deploy.Provider)
	}

	if c.Pipeline.InterRequestDelay < 0 || c.Pipeline.ClearDelay < 0 {
		return fmt.Errorf("pipeline delays cannot be negative")
	}
	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("pipeline queue size must be positive")
	}

	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel cannot be empty")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ConfigFile is the JSON form of Config. Durations are strings such as "100ms".
// Secrets have no file form.
type ConfigFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Port         int    `json:"port"`
		Host         string `json:"host"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Playback *struct {
		PollInterval     string  `json:"poll_interval"`
		LoadTimeout      string  `json:"load_timeout"`
		IdleTTL          string  `json:"idle_ttl"`
		ReapInterval     string  `json:"reap_interval"`
		WordsPerSecond   float64 `json:"words_per_second"`
		MinSlideDuration string  `json:"min_slide_duration"`
	} `json:"playback"`
	Audio *struct {
		BitrateKbps int    `json:"bitrate_kbps"`
		CacheTTL    string `json:"cache_ttl"`
	} `json:"audio"`
	Assets *AssetsConfig `json:"assets"`
	ElevenLabs *struct {
		BaseURL         string  `json:"base_url"`
		Model           string  `json:"model"`
		DefaultVoiceID  string  `json:"default_voice_id"`
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Timeout         string  `json:"timeout"`
	} `json:"elevenlabs"`
	Anthropic *struct {
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
		Timeout string `json:"timeout"`
	} `json:"anthropic"`
	Deploy   *DeployConfig `json:"deploy"`
	Pipeline *struct {
		InterRequestDelay string `json:"inter_request_delay"`
		ClearDelay        string `json:"clear_delay"`
		QueueSize         int    `json:"queue_size"`
	} `json:"pipeline"`
	Redis *RedisConfig `json:"redis"`
	Log   *LogConfig   `json:"log"`
	Seed  *SeedConfig  `json:"seed"`
}

// LoadFromFile reads a JSON config file over the defaults and validates it.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	applySecrets(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the runtime configuration: defaults, then LESSONCAST_*
// environment variables, then the JSON file at path when one is given.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	applyEnv(cfg)
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applySecrets(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var f ConfigFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	d := durationSetter{}
	if s := f.Database; s != nil {
		setString(&cfg.Database.Path, s.Path)
		d.set("database.timeout", &cfg.Database.Timeout, s.Timeout)
	}
	if s := f.HTTP; s != nil {
		setInt(&cfg.HTTP.Port, s.Port)
		setString(&cfg.HTTP.Host, s.Host)
		d.set("http.read_timeout", &cfg.HTTP.ReadTimeout, s.ReadTimeout)
		d.set("http.write_timeout", &cfg.HTTP.WriteTimeout, s.WriteTimeout)
	}
	if s := f.WebSocket; s != nil {
		d.set("websocket.ping_interval", &cfg.WebSocket.PingInterval, s.PingInterval)
		d.set("websocket.read_timeout", &cfg.WebSocket.ReadTimeout, s.ReadTimeout)
		d.set("websocket.write_timeout", &cfg.WebSocket.WriteTimeout, s.WriteTimeout)
		setInt(&cfg.WebSocket.BufferSize, s.BufferSize)
	}
	if s := f.Playback; s != nil {
		d.set("playback.poll_interval", &cfg.Playback.PollInterval, s.PollInterval)
		d.set("playback.load_timeout", &cfg.Playback.LoadTimeout, s.LoadTimeout)
		d.set("playback.idle_ttl", &cfg.Playback.IdleTTL, s.IdleTTL)
		d.set("playback.reap_interval", &cfg.Playback.ReapInterval, s.ReapInterval)
		d.set("playback.min_slide_duration", &cfg.Playback.MinSlideDuration, s.MinSlideDuration)
		setFloat(&cfg.Playback.WordsPerSecond, s.WordsPerSecond)
	}
	if s := f.Audio; s != nil {
		setInt(&cfg.Audio.BitrateKbps, s.BitrateKbps)
		d.set("audio.cache_ttl", &cfg.Audio.CacheTTL, s.CacheTTL)
	}
	if s := f.Assets; s != nil {
		a := cfg.Assets
		setString(&a.Backend, s.Backend)
		setString(&a.LocalDir, s.LocalDir)
		setString(&a.LocalBaseURL, s.LocalBaseURL)
		setString(&a.GitHubAPIURL, s.GitHubAPIURL)
		setString(&a.GitHubOwner, s.GitHubOwner)
		setString(&a.GitHubRepo, s.GitHubRepo)
		setString(&a.GitHubBranch, s.GitHubBranch)
		setString(&a.GitHubPathPrefix, s.GitHubPathPrefix)
		setString(&a.GitHubBaseURL, s.GitHubBaseURL)
		setString(&a.GCSBucket, s.GCSBucket)
		setString(&a.GCSPrefix, s.GCSPrefix)
		setString(&a.GCSPublicBaseURL, s.GCSPublicBaseURL)
	}
	if s := f.ElevenLabs; s != nil {
		setString(&cfg.ElevenLabs.BaseURL, s.BaseURL)
		setString(&cfg.ElevenLabs.Model, s.Model)
		setString(&cfg.ElevenLabs.DefaultVoiceID, s.DefaultVoiceID)
		setFloat(&cfg.ElevenLabs.Stability, s.Stability)
		setFloat(&cfg.ElevenLabs.SimilarityBoost, s.SimilarityBoost)
		d.set("elevenlabs.timeout", &cfg.ElevenLabs.Timeout, s.Timeout)
	}
	if s := f.Anthropic; s != nil {
		setString(&cfg.Anthropic.BaseURL, s.BaseURL)
		setString(&cfg.Anthropic.Model, s.Model)
		d.set("anthropic.timeout", &cfg.Anthropic.Timeout, s.Timeout)
	}
	if s := f.Deploy; s != nil {
		setString(&cfg.Deploy.Provider, s.Provider)
		setString(&cfg.Deploy.RailwayEndpoint, s.RailwayEndpoint)
		setString(&cfg.Deploy.RailwayServiceID, s.RailwayServiceID)
		setString(&cfg.Deploy.RailwayEnvironmentID, s.RailwayEnvironmentID)
	}
	if s := f.Pipeline; s != nil {
		d.set("pipeline.inter_request_delay", &cfg.Pipeline.InterRequestDelay, s.InterRequestDelay)
		d.set("pipeline.clear_delay", &cfg.Pipeline.ClearDelay, s.ClearDelay)
		setInt(&cfg.Pipeline.QueueSize, s.QueueSize)
	}
	if s := f.Redis; s != nil {
		setString(&cfg.Redis.Addr, s.Addr)
		setString(&cfg.Redis.Channel, s.Channel)
	}
	if s := f.Log; s != nil {
		setString(&cfg.Log.Mode, s.Mode)
	}
	if s := f.Seed; s != nil {
		setString(&cfg.Seed.CatalogPath, s.CatalogPath)
	}

	if d.err != nil {
		return fmt.Errorf("config file %s: %w", path, d.err)
	}
	return nil
}

// durationSetter parses duration strings and keeps the first error.
type durationSetter struct {
	err error
}

func (d *durationSetter) set(field string, dst *time.Duration, raw string) {
	if raw == "" || d.err != nil {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		d.err = fmt.Errorf("invalid duration for %s: %w", field, err)
		return
	}
	*dst = v
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

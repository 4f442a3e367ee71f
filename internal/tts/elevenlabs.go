// Package tts turns slide narration into speech with ElevenLabs.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
)

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	DefaultVoiceID  string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
}

// Client implements interfaces.Synthesizer against the ElevenLabs
// text-to-speech endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

var _ interfaces.Synthesizer = (*Client)(nil)

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: ELEVENLABS_API_KEY", interfaces.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	if cfg.DefaultVoiceID == "" {
		cfg.DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("client", "ElevenLabs"),
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns mp3 bytes for text, which is sent as given. An empty
// voiceID selects the configured default voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoiceID
	}
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: c.cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, err
	}

	u := c.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("elevenlabs http %d: %s", resp.StatusCode, string(raw))
	}
	if len(raw) == 0 {
		return nil, ErrEmptyAudio
	}
	c.log.Debug("speech synthesized", "voice", voiceID, "chars", len(text), "bytes", len(raw), "took", time.Since(start))
	return raw, nil
}

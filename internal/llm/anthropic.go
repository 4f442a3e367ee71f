// Package llm is a minimal client for the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
)

var ErrEmptyCompletion = errors.New("model returned no text")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Version string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

var _ interfaces.LanguageModel = (*Client)(nil)

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", interfaces.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("client", "Anthropic"),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesReq struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type errorResp struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user turn and returns the text blocks
// of the reply joined together.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(messagesReq{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResp
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			return "", fmt.Errorf("anthropic http %d: %s: %s", resp.StatusCode, e.Error.Type, e.Error.Message)
		}
		return "", fmt.Errorf("anthropic http %d: %s", resp.StatusCode, string(raw))
	}

	var out messagesResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("anthropic decode: %w", err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	c.log.Debug("completion received", "model", c.cfg.Model, "stop_reason", out.StopReason, "chars", sb.Len())
	return sb.String(), nil
}

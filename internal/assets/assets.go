// Package assets stores generated narration clips in a local directory, a
// GitHub repository or a Cloud Storage bucket.
package assets

import (
	"context"
	"fmt"
	"path"
	"strings"

	"lessoncast/internal/config"
	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
)

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg *config.AssetsConfig, log *logger.Logger) (interfaces.AssetStore, error) {
	switch cfg.Backend {
	case config.AssetBackendLocal:
		return NewLocal(cfg.LocalDir, cfg.LocalBaseURL)
	case config.AssetBackendGitHub:
		return NewGitHub(GitHubConfig{
			APIURL:     cfg.GitHubAPIURL,
			Owner:      cfg.GitHubOwner,
			Repo:       cfg.GitHubRepo,
			Branch:     cfg.GitHubBranch,
			PathPrefix: cfg.GitHubPathPrefix,
			BaseURL:    cfg.GitHubBaseURL,
			Token:      cfg.GitHubToken,
		}, log)
	case config.AssetBackendGCS:
		return NewGCS(ctx, GCSConfig{
			Bucket:        cfg.GCSBucket,
			Prefix:        cfg.GCSPrefix,
			PublicBaseURL: cfg.GCSPublicBaseURL,
		}, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// cleanKey normalizes a slash-separated key and rejects escapes.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

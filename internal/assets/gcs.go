package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

type GCSConfig struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// GCS keeps clips in a Cloud Storage bucket. Objects are served publicly
// from the bucket or from PublicBaseURL when a CDN fronts it.
type GCS struct {
	client *storage.Client
	cfg    GCSConfig
	log    *logger.Logger
}

// NewGCS connects with application default credentials. When
// STORAGE_EMULATOR_HOST is set the client talks to the emulator without
// authentication.
func NewGCS(ctx context.Context, cfg GCSConfig, log *logger.Logger, opts ...option.ClientOption) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if os.Getenv("STORAGE_EMULATOR_HOST") != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &GCS{
		client: client,
		cfg:    cfg,
		log:    log.With("service", "GCSAssets", "bucket", cfg.Bucket),
	}, nil
}

func (g *GCS) object(key string) string {
	if g.cfg.Prefix == "" {
		return key
	}
	return g.cfg.Prefix + "/" + key
}

func (g *GCS) keyFor(object string) string {
	if g.cfg.Prefix == "" {
		return object
	}
	return strings.TrimPrefix(object, g.cfg.Prefix+"/")
}

func (g *GCS) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = contentTypeForKey(k)
	}
	w := g.client.Bucket(g.cfg.Bucket).Object(g.object(k)).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=300"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", k, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", k, err)
	}
	g.log.Debug("asset uploaded", "key", k, "bytes", len(data))
	return g.PublicURL(k), nil
}

func (g *GCS) Stat(ctx context.Context, key string) (types.Asset, error) {
	k, err := cleanKey(key)
	if err != nil {
		return types.Asset{}, err
	}
	attrs, err := g.client.Bucket(g.cfg.Bucket).Object(g.object(k)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return types.Asset{}, interfaces.ErrAssetNotFound
	}
	if err != nil {
		return types.Asset{}, err
	}
	return types.Asset{Key: k, Size: attrs.Size, URL: g.PublicURL(k)}, nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]types.Asset, error) {
	it := g.client.Bucket(g.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: g.object(prefix)})
	out := []types.Asset{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		key := g.keyFor(attrs.Name)
		out = append(out, types.Asset{Key: key, Size: attrs.Size, URL: g.PublicURL(key)})
	}
	return out, nil
}

// Delete removes key. A missing key is not an error.
func (g *GCS) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.cfg.Bucket).Object(g.object(k)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCS) PublicURL(key string) string {
	if g.cfg.PublicBaseURL != "" {
		return joinURL(g.cfg.PublicBaseURL, g.object(key))
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.cfg.Bucket, g.object(key))
}

func (g *GCS) Close() error {
	return g.client.Close()
}

package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// Local keeps clips under a directory that the HTTP server exposes at
// baseURL.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local asset directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/audio"
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

// Dir is the root served over HTTP.
func (l *Local) Dir() string { return l.dir }

func (l *Local) path(key string) (string, string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(l.dir, filepath.FromSlash(k)), nil
}

// Upload writes through a temp file so readers never see a partial clip.
func (l *Local) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", k, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return l.PublicURL(k), nil
}

func (l *Local) Stat(ctx context.Context, key string) (types.Asset, error) {
	k, p, err := l.path(key)
	if err != nil {
		return types.Asset{}, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return types.Asset{}, interfaces.ErrAssetNotFound
	}
	if err != nil {
		return types.Asset{}, err
	}
	return types.Asset{Key: k, Size: info.Size(), URL: l.PublicURL(k)}, nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]types.Asset, error) {
	out := []types.Asset{}
	err := filepath.WalkDir(l.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, types.Asset{Key: key, Size: info.Size(), URL: l.PublicURL(key)})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key. A missing key is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	_, p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) PublicURL(key string) string {
	return joinURL(l.baseURL, key)
}

package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// GitHubConfig points the store at a folder of a repository branch.
type GitHubConfig struct {
	APIURL     string
	Owner      string
	Repo       string
	Branch     string
	PathPrefix string
	// BaseURL is where the deployed site serves PathPrefix. Empty means
	// raw.githubusercontent.com.
	BaseURL string
	Token   string
	Timeout time.Duration
}

// GitHub commits clips to a repository through the contents API. The site
// picks them up on its next deploy.
type GitHub struct {
	cfg  GitHubConfig
	http *http.Client
	log  *logger.Logger
}

func NewGitHub(cfg GitHubConfig, log *logger.Logger) (*GitHub, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github owner and repo required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN", interfaces.ErrNotConfigured)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.PathPrefix = strings.Trim(cfg.PathPrefix, "/")
	return &GitHub{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("client", "GitHubAssets"),
	}, nil
}

type contentEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

type putContentReq struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type deleteContentReq struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

type putContentResp struct {
	Content struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"content"`
}

func (g *GitHub) repoPath(key string) string {
	if g.cfg.PathPrefix == "" {
		return key
	}
	return g.cfg.PathPrefix + "/" + key
}

func (g *GitHub) keyFor(repoPath string) string {
	if g.cfg.PathPrefix == "" {
		return repoPath
	}
	return strings.TrimPrefix(repoPath, g.cfg.PathPrefix+"/")
}

func (g *GitHub) contentsURL(repoPath string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.cfg.APIURL, g.cfg.Owner, g.cfg.Repo, escapePath(repoPath))
	if withRef {
		u += "?ref=" + url.QueryEscape(g.cfg.Branch)
	}
	return u
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// do sends a request and returns the status and body. Only transport errors
// are returned as errors.
func (g *GitHub) do(ctx context.Context, method, u string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, nil
}

// lookup returns the file entry at repoPath, or nil when it does not exist.
func (g *GitHub) lookup(ctx context.Context, repoPath string) (*contentEntry, error) {
	status, raw, err := g.do(ctx, http.MethodGet, g.contentsURL(repoPath, true), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("github http %d: %s", status, string(raw))
	}
	// A directory decodes as an array.
	if len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '[' {
		return nil, nil
	}
	var entry contentEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("github decode: %w", err)
	}
	if entry.Type != "" && entry.Type != "file" {
		return nil, nil
	}
	return &entry, nil
}

// Upload creates or overwrites key on the configured branch.
func (g *GitHub) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	repoPath := g.repoPath(k)

	existing, err := g.lookup(ctx, repoPath)
	if err != nil {
		return "", fmt.Errorf("github lookup %s: %w", repoPath, err)
	}
	body := putContentReq{
		Message: "Update audio: " + k,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  g.cfg.Branch,
	}
	if existing != nil {
		body.SHA = existing.SHA
	}

	status, raw, err := g.do(ctx, http.MethodPut, g.contentsURL(repoPath, false), body)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("github http %d: %s", status, string(raw))
	}
	var out putContentResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("github decode: %w", err)
	}
	g.log.Debug("asset committed", "path", repoPath, "sha", out.Content.SHA, "overwrite", existing != nil)
	return g.PublicURL(k), nil
}

func (g *GitHub) Stat(ctx context.Context, key string) (types.Asset, error) {
	k, err := cleanKey(key)
	if err != nil {
		return types.Asset{}, err
	}
	entry, err := g.lookup(ctx, g.repoPath(k))
	if err != nil {
		return types.Asset{}, err
	}
	if entry == nil {
		return types.Asset{}, interfaces.ErrAssetNotFound
	}
	return types.Asset{Key: k, Size: entry.Size, URL: g.PublicURL(k)}, nil
}

// List reads the folder holding prefix and keeps the files whose key starts
// with prefix. Listing is not recursive.
func (g *GitHub) List(ctx context.Context, prefix string) ([]types.Asset, error) {
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
		if dir == "." {
			dir = ""
		}
	}
	dir = strings.Trim(dir, "/")
	repoDir := g.cfg.PathPrefix
	if dir != "" {
		repoDir = g.repoPath(dir)
	}

	status, raw, err := g.do(ctx, http.MethodGet, g.contentsURL(repoDir, true), nil)
	if err != nil {
		return nil, err
	}
	out := []types.Asset{}
	if status == http.StatusNotFound {
		return out, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("github http %d: %s", status, string(raw))
	}
	var entries []contentEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("github decode: %w", err)
	}
	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		key := g.keyFor(e.Path)
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, types.Asset{Key: key, Size: e.Size, URL: g.PublicURL(key)})
	}
	return out, nil
}

// Delete removes key. A missing key is not an error.
func (g *GitHub) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	repoPath := g.repoPath(k)
	entry, err := g.lookup(ctx, repoPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	status, raw, err := g.do(ctx, http.MethodDelete, g.contentsURL(repoPath, false), deleteContentReq{
		Message: "Delete old audio: " + path.Base(k),
		SHA:     entry.SHA,
		Branch:  g.cfg.Branch,
	})
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("github http %d: %s", status, string(raw))
	}
	return nil
}

func (g *GitHub) PublicURL(key string) string {
	if g.cfg.BaseURL != "" {
		return joinURL(g.cfg.BaseURL, key)
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s",
		g.cfg.Owner, g.cfg.Repo, g.cfg.Branch, escapePath(g.repoPath(key)))
}

// Package deploy asks the hosting platform to rebuild the site so that
// committed narration clips go live.
package deploy

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

	"lessoncast/internal/config"
	"lessoncast/internal/logger"
	"lessoncast/pkg/interfaces"
)

var ErrGraphQL = errors.New("railway graphql error")

// New returns the deployer selected by cfg.Provider.
func New(cfg *config.DeployConfig, log *logger.Logger) (interfaces.Deployer, error) {
	switch cfg.Provider {
	case config.DeployNone, "":
		return Noop{}, nil
	case config.DeployRailway:
		return NewRailway(RailwayConfig{
			Endpoint:      cfg.RailwayEndpoint,
			Token:         cfg.RailwayToken,
			ServiceID:     cfg.RailwayServiceID,
			EnvironmentID: cfg.RailwayEnvironmentID,
		}, log)
	default:
		return nil, fmt.Errorf("unknown deploy provider %q", cfg.Provider)
	}
}

// Noop is used when assets are served directly and no rebuild is needed.
type Noop struct{}

func (Noop) TriggerDeploy(ctx context.Context) error { return nil }

type RailwayConfig struct {
	Endpoint      string
	Token         string
	ServiceID     string
	EnvironmentID string
	Timeout       time.Duration
}

type Railway struct {
	cfg  RailwayConfig
	http *http.Client
	log  *logger.Logger
}

func NewRailway(cfg RailwayConfig, log *logger.Logger) (*Railway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: RAILWAY_API_TOKEN", interfaces.ErrNotConfigured)
	}
	if cfg.ServiceID == "" {
		return nil, fmt.Errorf("%w: railway service id", interfaces.ErrNotConfigured)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://backboard.railway.app/graphql/v2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Railway{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("client", "Railway"),
	}, nil
}

const redeployMutation = `mutation serviceInstanceRedeploy($serviceId: String!, $environmentId: String) {
  serviceInstanceRedeploy(serviceId: $serviceId, environmentId: $environmentId)
}`

type graphqlReq struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResp struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// TriggerDeploy redeploys the service. An empty environment ID lets Railway
// pick the default environment.
func (r *Railway) TriggerDeploy(ctx context.Context) error {
	vars := map[string]any{"serviceId": r.cfg.ServiceID, "environmentId": nil}
	if r.cfg.EnvironmentID != "" {
		vars["environmentId"] = r.cfg.EnvironmentID
	}
	body, err := json.Marshal(graphqlReq{Query: redeployMutation, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("railway http %d: %s", resp.StatusCode, string(raw))
	}
	var out graphqlResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("railway decode: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}
	r.log.Info("redeploy triggered", "service", r.cfg.ServiceID)
	return nil
}

// Package app wires the lesson store, playback sessions, realtime fan-out,
// the audio pipeline and the HTTP surface into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lessoncast/internal/api"
	"lessoncast/internal/assets"
	"lessoncast/internal/audio"
	"lessoncast/internal/clock"
	"lessoncast/internal/config"
	"lessoncast/internal/database"
	"lessoncast/internal/deploy"
	"lessoncast/internal/hub"
	"lessoncast/internal/llm"
	"lessoncast/internal/logger"
	"lessoncast/internal/pipeline"
	"lessoncast/internal/playback"
	"lessoncast/internal/quiz"
	"lessoncast/internal/realtime"
	"lessoncast/internal/router"
	"lessoncast/internal/seed"
	"lessoncast/internal/session"
	"lessoncast/internal/slides"
	"lessoncast/internal/tts"
	"lessoncast/internal/websocket"
	"lessoncast/pkg/interfaces"
	pkgdatabase "lessoncast/pkg/database"
)

const (
	shutdownTimeout      = 10 * time.Second
	limiterCleanupPeriod = time.Minute
)

// Application owns every long-lived component.
type Application struct {
	config *config.Config
	log    *logger.Logger
	origin string

	db       *database.Manager
	assets   interfaces.AssetStore
	bus      realtime.Bus
	sessions *session.Manager
	router   *router.Router
	hub      *hub.Hub
	runner   *pipeline.Runner
	handler  http.Handler

	httpServer *http.Server
}

// NewApplication builds the component graph in dependency order:
// store, assets, playback, pipeline, realtime, HTTP.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		config: cfg,
		log:    log,
		origin: instanceName(),
	}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) build(ctx context.Context) error {
	cfg := app.config
	log := app.log

	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Database.Path
	dbConfig.ConnMaxLifetime = cfg.Database.Timeout
	dbConfig.ConnMaxIdleTime = cfg.Database.Timeout / 3
	db, err := database.NewManager(dbConfig, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	migrations := pkgdatabase.NewMigrationManager(db.GetDB(), pkgdatabase.MigrationSource(dbConfig))
	if err := migrations.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	log.Info("database ready", "path", dbConfig.DatabasePath)

	est := slides.Estimator{WordsPerSecond: cfg.Playback.WordsPerSecond, Min: cfg.Playback.MinSlideDuration}
	if cfg.Seed.CatalogPath != "" {
		catalog, err := seed.Load(cfg.Seed.CatalogPath)
		if err != nil {
			return err
		}
		n, err := seed.Apply(ctx, db, catalog, est, log)
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		log.Info("catalog imported", "path", cfg.Seed.CatalogPath, "lessons", n)
	}

	store, err := assets.New(ctx, cfg.Assets, log)
	if err != nil {
		return fmt.Errorf("failed to initialize asset store: %w", err)
	}
	app.assets = store

	clk := clock.Real()
	resolver := audio.NewResolver(store, cfg.Audio.CacheTTL, clk, log)
	player := audio.NewVirtualPlayer(clk, cfg.Audio.BitrateKbps)

	var synth interfaces.Synthesizer
	if c, err := tts.New(tts.Config{
		APIKey:          cfg.ElevenLabs.APIKey,
		BaseURL:         cfg.ElevenLabs.BaseURL,
		Model:           cfg.ElevenLabs.Model,
		DefaultVoiceID:  cfg.ElevenLabs.DefaultVoiceID,
		Stability:       cfg.ElevenLabs.Stability,
		SimilarityBoost: cfg.ElevenLabs.SimilarityBoost,
		Timeout:         cfg.ElevenLabs.Timeout,
	}, log); err == nil {
		synth = c
	} else {
		log.Warn("speech synthesis disabled", "reason", err)
	}

	var model interfaces.LanguageModel
	if c, err := llm.New(llm.Config{
		APIKey:  cfg.Anthropic.APIKey,
		BaseURL: cfg.Anthropic.BaseURL,
		Model:   cfg.Anthropic.Model,
		Version: cfg.Anthropic.Version,
		Timeout: cfg.Anthropic.Timeout,
	}, log); err == nil {
		model = c
	} else {
		log.Warn("model-assisted quiz features disabled", "reason", err)
	}

	deployer, err := deploy.New(cfg.Deploy, log)
	if err != nil {
		return fmt.Errorf("failed to initialize deployer: %w", err)
	}

	svc := pipeline.New(db, synth, store, deployer, resolver, pipeline.Options{
		InterRequestDelay: cfg.Pipeline.InterRequestDelay,
		ClearDelay:        cfg.Pipeline.ClearDelay,
		DefaultVoiceID:    cfg.ElevenLabs.DefaultVoiceID,
	}, log)
	app.runner = pipeline.NewRunner(svc, cfg.Pipeline.QueueSize, log)

	if cfg.Redis.Addr != "" {
		bus, err := realtime.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, app.origin, log)
		if err != nil {
			return fmt.Errorf("failed to connect event bus: %w", err)
		}
		app.bus = bus
	}

	app.sessions = session.NewManager(db, session.Options{
		Playback: playback.Options{
			Resolver:     resolver,
			Player:       player,
			Clock:        clk,
			Logger:       log,
			PollInterval: cfg.Playback.PollInterval,
			LoadTimeout:  cfg.Playback.LoadTimeout,
		},
		Estimator: est,
		IdleTTL:   cfg.Playback.IdleTTL,
	}, log)

	registry := websocket.NewRegistry(log)
	app.router = router.NewRouter(app.sessions, log)
	app.hub = hub.NewHub(registry, app.sessions, app.bus, log)
	app.sessions.AddObserver(app.hub.Publish)

	wsHandler := websocket.NewHandler(app.hub, app.hub, app.router, websocket.ConfigFrom(cfg.WebSocket), log)

	deps := api.Deps{
		Store:     db,
		Sessions:  app.sessions,
		Realtime:  app.hub,
		Quiz:      quiz.New(model, log),
		Jobs:      app.runner,
		Audio:     svc,
		Estimator: est,
		AdminKey:  cfg.Admin.Key,
	}
	if cfg.Assets.Backend == config.AssetBackendLocal && cfg.Assets.LocalBaseURL == "/audio" {
		deps.AudioDir = cfg.Assets.LocalDir
	}
	apiServer := api.NewServer(deps, log)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	app.handler = mux

	app.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve runs the HTTP server and the background loops on ln. When ctx is
// cancelled the server drains, every session is closed and Serve returns.
// The first loop to fail stops the others.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.hub.Run(gctx) })
	g.Go(func() error { return app.sessions.RunReaper(gctx, app.config.Playback.ReapInterval) })
	g.Go(func() error { return app.runner.Run(gctx) })
	g.Go(func() error { return app.router.RateLimiter().RunCleanup(gctx, limiterCleanupPeriod) })

	g.Go(func() error {
		app.log.Info("lessoncast listening", "addr", ln.Addr().String(), "origin", app.origin)
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			app.log.Warn("HTTP server shutdown error", "error", err)
		}
		app.sessions.CloseAll()
		return nil
	})

	return g.Wait()
}

// Handler exposes the routed HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.handler
}

// Addr is the configured listen address.
func (app *Application) Addr() string {
	return app.config.Addr()
}

// Close releases the event bus, asset store and database. It is safe to
// call on a partially built application.
func (app *Application) Close() {
	if app.sessions != nil {
		app.sessions.CloseAll()
	}
	if app.bus != nil {
		if err := app.bus.Close(); err != nil {
			app.log.Warn("event bus close error", "error", err)
		}
	}
	if c, ok := app.assets.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.log.Warn("asset store close error", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.log.Warn("database close error", "error", err)
		}
	}
	app.log.Info("shutdown complete")
}

// instanceName identifies this process on the event bus.
func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "lessoncast"
	}
	return host + "-" + uuid.NewString()[:8]
}

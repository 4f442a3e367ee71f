package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lessoncast/internal/app"
	"lessoncast/internal/config"
	"lessoncast/internal/logger"
)

const configFileEnv = "LESSONCAST_CONFIG_FILE"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv(configFileEnv)); err != nil {
		fmt.Fprintf(os.Stderr, "lessoncast: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves until ctx is
// cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	application, err := app.NewApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	log.Info("starting lessoncast", "addr", application.Addr(), "assets", cfg.Assets.Backend, "deploy", cfg.Deploy.Provider)
	return application.Run(ctx)
}

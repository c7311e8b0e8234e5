package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andreyxaxa/Webhook-Pipeline/config"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/app"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/joho/godotenv"
)

// loadConfig reads .env when present, the same way the service does.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err = godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	return config.New()
}

// withCore runs f against a connected pipeline core. Archival is never enabled from the CLI.
func withCore(ctx context.Context, f func(ctx context.Context, core *app.Core) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	l := logger.NewWithWriter(os.Stderr, cfg.Log.Level)

	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(2), postgres.ConnAttempts(3))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return f(ctx, app.NewCore(cfg, pg, nil, l))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/andreyxaxa/Webhook-Pipeline/config"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// Config
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	if err := loadEnvFile(envFile); err != nil {
		log.Fatalf("config error: %s", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config error: %s", err)
	}

	// Run
	app.Run(cfg)
}

// loadEnvFile fills the environment from path. A missing file is not an error,
// variables already set win over the file.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

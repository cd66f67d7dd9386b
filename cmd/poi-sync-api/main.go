// Package main is the entry point for the POI sync service.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/rovits/poi-sync-service/cmd/poi-sync-api/app"
	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/logging"
)

func main() {
	// A missing .env file is fine, the environment is used as is.
	envErr := godotenv.Load()

	// Logs go to stderr so stdout stays clean for commands that print data.
	logging.Setup(logging.LevelFromEnv(config.EnvPrefix))
	if envErr != nil && !os.IsNotExist(envErr) {
		slog.Warn("Failed to load .env file", "error", envErr)
	}

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

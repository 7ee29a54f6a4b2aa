package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/storage"
)

// Retention sweep: hard-deletes messages older than the cutoff, archived or
// not. Meant to run from cron, independently of the bot process, so it only
// needs the database path.
func main() {
	days := flag.Int("days", 30, "delete messages older than this many days")
	flag.Parse()

	_ = godotenv.Load()
	dbPath := os.Getenv("SQLITE_DB_PATH")
	if dbPath == "" {
		dbPath = "data/messages.db"
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	storageClient, err := storage.NewClient(dbPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer storageClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := storageClient.DeleteOlderThan(ctx, *days)
	if err != nil {
		logger.Fatal().Err(err).Int("days", *days).Msg("Cleanup failed")
	}

	logger.Info().
		Int("days", *days).
		Int64("deleted", deleted).
		Msg("Cleanup finished")
}

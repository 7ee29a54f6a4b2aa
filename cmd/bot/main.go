package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/telegram-summary-bot/internal/bot"
	"github.com/telegram-summary-bot/internal/config"
	"github.com/telegram-summary-bot/internal/llm"
	"github.com/telegram-summary-bot/internal/ratelimit"
	"github.com/telegram-summary-bot/internal/render"
	"github.com/telegram-summary-bot/internal/scheduler"
	"github.com/telegram-summary-bot/internal/storage"
	"github.com/telegram-summary-bot/internal/summary"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("model", cfg.OpenAIModel).
		Str("db_path", cfg.SQLitePath).
		Msg("Starting Telegram Summary Bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	logger.Info().Msg("Opening SQLite database...")
	storageClient, err := storage.NewClient(cfg.SQLitePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}()

	// Load per-chat policy
	chats := config.NewChatConfig(cfg.ChatConfigPath, logger)
	if err := chats.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load chat config")
	}

	// Load the daily run ledger
	ledger := storage.NewRunLedger(storageClient, logger)
	if err := ledger.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load run ledger")
	}

	// Initialize the extraction service and its throttle
	logger.Info().Msg("Initializing OpenAI client...")
	llmClient := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout, logger)
	limiter := ratelimit.NewLimiter(
		cfg.OpenAIMinDelayS,
		cfg.OpenAIMaxRetries,
		cfg.OpenAIBackoffBaseS,
		cfg.OpenAIBackoffMaxS,
		logger,
	)

	// Assemble the summarization pipeline
	pipeline := summary.NewPipeline(
		storageClient,
		summary.NewFilter(llmClient, limiter, logger),
		summary.NewExtractor(llmClient, limiter, logger),
		render.NewRenderer(logger),
		logger,
	)

	// Initialize bot
	logger.Info().Msg("Initializing Telegram bot...")
	telegramBot, err := bot.New(cfg, storageClient, chats, pipeline, llmClient, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	logger.Info().
		Str("username", telegramBot.GetUsername()).
		Msg("Bot initialized successfully")

	// Start the daily scheduler
	sched := scheduler.NewScheduler(storageClient, chats, ledger, pipeline, telegramBot, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start bot in a goroutine
	botErrChan := make(chan error, 1)
	go func() {
		if err := telegramBot.Start(ctx); err != nil {
			botErrChan <- err
		}
	}()

	logger.Info().Msg("Bot is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case err := <-botErrChan:
		logger.Error().Err(err).Msg("Bot stopped with error")
	}

	// Graceful shutdown
	logger.Info().Msg("Initiating graceful shutdown...")
	cancel()

	logger.Info().Msg("Stopping scheduler...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		telegramBot.Stop()
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, some updates may be lost")
	case <-done:
		logger.Info().Msg("Graceful shutdown completed")
	}

	logger.Info().Msg("Bot stopped")
}

// setupLogger configures and returns a zerolog logger
func setupLogger(level, environment string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	var logger zerolog.Logger
	if environment == "development" {
		// Pretty console output for development
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/telegram-summary-bot/internal/models"
)

// Load loads global configuration from environment variables.
// It first attempts to load from .env file, then reads environment variables.
func Load() (*models.BotConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	config := &models.BotConfig{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout: getEnvInt("OPENAI_TIMEOUT", 60),

		OpenAIMinDelayS:    getEnvFloat("OPENAI_MIN_DELAY_S", 0.5),
		OpenAIMaxRetries:   getEnvInt("OPENAI_MAX_RETRIES", 5),
		OpenAIBackoffBaseS: getEnvFloat("OPENAI_BACKOFF_BASE_S", 1.0),
		OpenAIBackoffMaxS:  getEnvFloat("OPENAI_BACKOFF_MAX_S", 30.0),

		SQLitePath:     getEnv("SQLITE_DB_PATH", "data/messages.db"),
		ChatConfigPath: getEnv("CHAT_CONFIG_PATH", "config.yaml"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks if all required configuration values are set.
func validate(cfg *models.BotConfig) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.OpenAITimeout <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT must be positive, got %d", cfg.OpenAITimeout)
	}
	if cfg.OpenAIMinDelayS < 0 {
		return fmt.Errorf("OPENAI_MIN_DELAY_S must not be negative, got %f", cfg.OpenAIMinDelayS)
	}
	if cfg.OpenAIMaxRetries < 0 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must not be negative, got %d", cfg.OpenAIMaxRetries)
	}
	if cfg.OpenAIBackoffBaseS <= 0 {
		return fmt.Errorf("OPENAI_BACKOFF_BASE_S must be positive, got %f", cfg.OpenAIBackoffBaseS)
	}
	if cfg.OpenAIBackoffMaxS < cfg.OpenAIBackoffBaseS {
		return fmt.Errorf("OPENAI_BACKOFF_MAX_S must be >= OPENAI_BACKOFF_BASE_S")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvFloat retrieves environment variable as float or returns default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

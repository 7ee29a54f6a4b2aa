package bot

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/config"
	"github.com/telegram-summary-bot/internal/models"
	"github.com/telegram-summary-bot/internal/storage"
)

// Summarizer runs the summarization pipeline for one chat.
type Summarizer interface {
	Summarize(ctx context.Context, cfg *models.ChatSummaryConfig, now time.Time) (string, error)
}

// Transcriber converts voice recordings to text. Optional: without one,
// voice messages are ignored.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// LinkSummarizer condenses a linked page or video into text. Optional:
// without one, bare links are stored as-is.
type LinkSummarizer interface {
	SummarizeLink(ctx context.Context, url string) (string, error)
}

// Bot ingests chat messages into the store and serves on-demand summaries.
type Bot struct {
	api         *tgbotapi.BotAPI
	config      *models.BotConfig
	storage     *storage.Client
	chats       *config.ChatConfig
	pipeline    Summarizer
	transcriber Transcriber
	links       LinkSummarizer
	logger      zerolog.Logger
	wg          sync.WaitGroup // Tracks active handlers for graceful shutdown
}

// New creates a bot instance.
func New(
	cfg *models.BotConfig,
	store *storage.Client,
	chats *config.ChatConfig,
	pipeline Summarizer,
	transcriber Transcriber,
	links LinkSummarizer,
	logger zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = cfg.LogLevel == "debug"

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authorized")

	return &Bot{
		api:         api,
		config:      cfg,
		storage:     store,
		chats:       chats,
		pipeline:    pipeline,
		transcriber: transcriber,
		links:       links,
		logger:      logger.With().Str("component", "bot").Logger(),
	}, nil
}

// Start runs the long-polling loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Msg("Starting bot...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("Bot started, waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down bot...")
			b.api.StopReceivingUpdates()

			b.logger.Info().Msg("Waiting for active handlers to complete...")
			b.wg.Wait()
			b.logger.Info().Msg("All handlers completed")

			return nil

		case update := <-updates:
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Stop stops receiving updates.
func (b *Bot) Stop() {
	b.logger.Info().Msg("Stopping bot...")
	b.api.StopReceivingUpdates()
}

// SendSummary delivers a summary to its chat.
func (b *Bot) SendSummary(ctx context.Context, chatID int64, text string) error {
	return b.sendMessage(chatID, text)
}

// GetUsername returns the bot username.
func (b *Bot) GetUsername() string {
	return b.api.Self.UserName
}

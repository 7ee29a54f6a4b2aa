package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/telegram-summary-bot/internal/models"
)

// handleUpdate processes one incoming update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.recoverMiddleware(func() {
		switch {
		case update.Message != nil:
			b.handleMessage(ctx, update.Message)
		case update.EditedMessage != nil:
			// Edited messages replace the stored row.
			b.ingestMessage(ctx, update.EditedMessage)
		}
	})
}

// handleMessage routes commands and ingests everything else.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.IsPrivate() {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	b.ingestMessage(ctx, message)
}

// ingestMessage stores a chat message for later summarization.
func (b *Bot) ingestMessage(ctx context.Context, message *tgbotapi.Message) {
	text := message.Text
	if text == "" {
		text = message.Caption
	}
	kind := models.KindText

	if message.Voice != nil && b.transcriber != nil {
		transcript, err := b.transcribeVoice(ctx, message.Voice.FileID)
		if err != nil {
			b.logger.Error().
				Err(err).
				Int64("chat_id", message.Chat.ID).
				Int("message_id", message.MessageID).
				Msg("Failed to transcribe voice message")
			return
		}
		text = transcript
		kind = models.KindVoice
	}

	if text == "" {
		return
	}
	if isBareLink(message) {
		kind = models.KindLink
		if b.links != nil {
			summary, err := b.links.SummarizeLink(ctx, text)
			if err != nil {
				b.logger.Warn().
					Err(err).
					Int64("chat_id", message.Chat.ID).
					Msg("Failed to summarize link, storing raw URL")
			} else if summary != "" {
				text = summary
			}
		}
	}

	msg := &models.Message{
		ChatID:    message.Chat.ID,
		MessageID: int64(message.MessageID),
		Date:      int64(message.Date),
		Text:      text,
		Kind:      kind,
	}
	if message.From != nil {
		msg.UserID = message.From.ID
		msg.Username = message.From.UserName
		msg.FirstName = message.From.FirstName
		msg.LastName = message.From.LastName
	}
	if message.ReplyToMessage != nil {
		msg.ForwardID = int64(message.ReplyToMessage.MessageID)
	} else if message.ForwardFromMessageID != 0 {
		msg.ForwardID = int64(message.ForwardFromMessageID)
	}

	if err := b.storage.SaveMessage(ctx, msg); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("Failed to save message")
	}
}

// handleCommand processes bot commands.
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()

	b.logger.Info().
		Str("command", command).
		Int64("chat_id", message.Chat.ID).
		Int64("user_id", message.From.ID).
		Msg("Received command")

	switch command {
	case "summarize":
		b.handleSummarizeCommand(ctx, message)
	case "start", "help":
		b.handleHelpCommand(message)
	default:
		b.sendErrorMessage(message.Chat.ID, "Unknown command. Use /help for the command list.")
	}
}

// handleSummarizeCommand runs the pipeline on demand. Manual runs never
// touch the daily ledger: the scheduled run still happens.
func (b *Bot) handleSummarizeCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	b.sendTypingAction(chatID)

	cfg := b.chats.Resolve(chatID, message.Chat.UserName)
	text, err := b.pipeline.Summarize(ctx, cfg, time.Now())
	if err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", chatID).
			Msg("On-demand summarization failed")
		b.sendErrorMessage(chatID, "Sorry, summarization failed. Please try again later.")
		return
	}

	if text == "" {
		b.sendErrorMessage(chatID, "Nothing to summarize yet.")
		return
	}
	_ = b.sendMessage(chatID, text)
}

// handleHelpCommand handles /help and /start.
func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	helpMsg := "I collect this chat's messages and post a daily digest of discussion topics.\n\n" +
		"*Commands:*\n" +
		"/summarize - Summarize the current day right now\n" +
		"/help - Show this message"

	_ = b.sendMessage(message.Chat.ID, helpMsg)
}

// transcribeVoice downloads a voice file and runs it through the
// transcription service.
func (b *Bot) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve voice file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build voice download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download voice file: status %d", resp.StatusCode)
	}
	return b.transcriber.Transcribe(ctx, "voice.ogg", resp.Body)
}

// isBareLink reports whether the message is nothing but a single URL.
func isBareLink(message *tgbotapi.Message) bool {
	for _, entity := range message.Entities {
		if entity.Type == "url" && entity.Offset == 0 && entity.Length == len([]rune(message.Text)) {
			return true
		}
	}
	return false
}

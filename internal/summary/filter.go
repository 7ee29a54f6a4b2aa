package summary

import (
	"context"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/llm"
	"github.com/telegram-summary-bot/internal/models"
)

// Completer runs one plain completion against the remote service.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Filter is the optional relevance pre-pass: it asks the service which
// messages are worth summarizing and drops the rest. Failures keep the batch
// by default, so a broken filter degrades to summarizing everything rather
// than silencing the chat.
type Filter struct {
	service  Completer
	throttle Throttle
	logger   zerolog.Logger
}

// NewFilter creates a relevance filter over the given completion service.
func NewFilter(service Completer, throttle Throttle, logger zerolog.Logger) *Filter {
	return &Filter{
		service:  service,
		throttle: throttle,
		logger:   logger.With().Str("component", "relevance_filter").Logger(),
	}
}

// Apply returns the subset of messages the service kept, preserving order.
// Messages are sent in batches bounded by the configured character budget.
// When a batch fails and the chat is not configured fail-closed, the whole
// batch is kept.
func (f *Filter) Apply(ctx context.Context, cfg *models.ChatSummaryConfig, messages []models.Message) ([]models.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	batchChars := cfg.RelevanceBatchChars
	if batchChars <= 0 {
		batchChars = 8000
	}

	kept := make([]models.Message, 0, len(messages))
	for _, batch := range splitBatches(messages, batchChars) {
		ids, err := f.filterBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if cfg.RelevanceFailClosed {
				return nil, err
			}
			f.logger.Warn().
				Err(err).
				Int64("chat_id", cfg.ChatID).
				Int("batch_size", len(batch)).
				Msg("Relevance filter failed, keeping batch")
			kept = append(kept, batch...)
			continue
		}

		for _, msg := range batch {
			if ids[msg.MessageID] {
				kept = append(kept, msg)
			}
		}
	}

	f.logger.Debug().
		Int64("chat_id", cfg.ChatID).
		Int("in", len(messages)).
		Int("kept", len(kept)).
		Msg("Relevance filter applied")

	return kept, nil
}

func (f *Filter) filterBatch(ctx context.Context, batch []models.Message) (map[int64]bool, error) {
	if err := f.throttle.Acquire(ctx); err != nil {
		return nil, err
	}

	resp, err := f.service.Complete(ctx, llm.RelevancePrompt, llm.FormatMessages(batch))
	if err != nil {
		return nil, err
	}
	return parseKeptIDs(resp), nil
}

// splitBatches groups messages into consecutive runs whose combined text
// length stays under the budget. A single oversized message still forms a
// batch of its own.
func splitBatches(messages []models.Message, budget int) [][]models.Message {
	var batches [][]models.Message
	var current []models.Message
	size := 0

	for _, msg := range messages {
		msgSize := len(msg.Text)
		if len(current) > 0 && size+msgSize > budget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, msg)
		size += msgSize
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

var keptIDPattern = regexp.MustCompile(`\d+`)

// parseKeptIDs pulls message ids out of the filter response. The prompt asks
// for a bare JSON array, but any response containing the numbers is accepted.
func parseKeptIDs(resp string) map[int64]bool {
	ids := make(map[int64]bool)
	for _, raw := range keptIDPattern.FindAllString(resp, -1) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids[id] = true
	}
	return ids
}

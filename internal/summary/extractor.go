package summary

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/llm"
	"github.com/telegram-summary-bot/internal/models"
)

// ExtractionService is the remote topic-extraction surface, one method per
// tier.
type ExtractionService interface {
	ExtractStructured(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error)
	ExtractStructuredFallback(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error)
	ExtractText(ctx context.Context, system, messagesText string, maxTokens int) (string, error)
}

// Throttle gates outbound calls and paces retries.
type Throttle interface {
	Acquire(ctx context.Context) error
	WaitBackoff(ctx context.Context, attempt int, retryAfter time.Duration) error
	MaxRetries() int
}

// Extractor turns a window of messages into ranked topics. It walks three
// tiers of the extraction service, from schema-enforced output down to plain
// text, advancing a tier when the current one keeps producing unusable
// payloads and retrying within a tier on transient failures.
type Extractor struct {
	service  ExtractionService
	throttle Throttle
	logger   zerolog.Logger
}

// NewExtractor creates an extractor over the given service and throttle.
func NewExtractor(service ExtractionService, throttle Throttle, logger zerolog.Logger) *Extractor {
	return &Extractor{
		service:  service,
		throttle: throttle,
		logger:   logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract runs the tier ladder and returns normalized, ranked topics.
// When every tier fails it returns ErrExtractionFailed; context cancellation
// aborts immediately.
func (e *Extractor) Extract(ctx context.Context, cfg *models.ChatSummaryConfig, messages []models.Message) ([]models.Topic, error) {
	messagesText := llm.FormatMessages(messages)

	basePrompt, structuredPrompt, err := e.prompts(cfg)
	if err != nil {
		return nil, err
	}

	timeByID := make(map[int64]int64, len(messages))
	for _, msg := range messages {
		timeByID[msg.MessageID] = msg.Date
	}

	tiers := []struct {
		name string
		call func(context.Context) ([]models.Topic, error)
	}{
		{"structured", func(ctx context.Context) ([]models.Topic, error) {
			payload, err := e.service.ExtractStructured(ctx, structuredPrompt, messagesText, cfg.MaxOutputTokens)
			if err != nil {
				return nil, err
			}
			return topicsFromPayload(payload), nil
		}},
		{"structured_fallback", func(ctx context.Context) ([]models.Topic, error) {
			payload, err := e.service.ExtractStructuredFallback(ctx, structuredPrompt, messagesText, cfg.MaxOutputTokens)
			if err != nil {
				return nil, err
			}
			return topicsFromPayload(payload), nil
		}},
		{"plain_text", func(ctx context.Context) ([]models.Topic, error) {
			text, err := e.service.ExtractText(ctx, basePrompt, messagesText, cfg.MaxOutputTokens)
			if err != nil {
				return nil, err
			}
			return parseTextTopics(text)
		}},
	}

	for _, tier := range tiers {
		topics, err := e.runTier(ctx, cfg.ChatID, tier.name, tier.call)
		if err == nil {
			rankTopics(topics, timeByID)
			return topics, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn().
			Err(err).
			Int64("chat_id", cfg.ChatID).
			Str("tier", tier.name).
			Msg("Extraction tier failed, advancing")
	}

	return nil, models.ErrExtractionFailed
}

// runTier attempts one tier with the retry budget. Validation failures and
// non-retryable transport errors end the tier immediately; rate limits and
// transient failures back off and retry.
func (e *Extractor) runTier(ctx context.Context, chatID int64, name string, call func(context.Context) ([]models.Topic, error)) ([]models.Topic, error) {
	var lastErr error
	for attempt := 0; attempt <= e.throttle.MaxRetries(); attempt++ {
		if err := e.throttle.Acquire(ctx); err != nil {
			return nil, err
		}

		topics, err := call(ctx)
		if err == nil {
			return topics, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !models.IsRetryable(err) {
			return nil, err
		}
		if attempt == e.throttle.MaxRetries() {
			break
		}

		var retryAfter time.Duration
		var rl *models.RateLimitError
		if errors.As(err, &rl) {
			retryAfter = rl.RetryAfter
		}

		e.logger.Debug().
			Err(err).
			Int64("chat_id", chatID).
			Str("tier", name).
			Int("attempt", attempt+1).
			Msg("Retrying extraction call")

		if err := e.throttle.WaitBackoff(ctx, attempt, retryAfter); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// prompts resolves the chat's summarization prompts, falling back to the
// built-in English defaults.
func (e *Extractor) prompts(cfg *models.ChatSummaryConfig) (base, structured string, err error) {
	base = llm.DefaultSummarizationPrompt
	if cfg.PromptPath != "" {
		base, err = llm.LoadPrompt(cfg.PromptPath)
		if err != nil {
			return "", "", &models.ConfigError{Field: "prompt", Value: cfg.PromptPath, Err: err}
		}
	}

	structuredExtra := llm.StructuredSystemPrompt
	if cfg.StructuredPromptPath != "" {
		structuredExtra, err = llm.LoadPrompt(cfg.StructuredPromptPath)
		if err != nil {
			return "", "", &models.ConfigError{Field: "structured_system_prompt", Value: cfg.StructuredPromptPath, Err: err}
		}
	}

	return base, base + "\n\n" + structuredExtra, nil
}

// topicsFromPayload normalizes a structured payload: only the earliest
// retained message id is kept per topic, and participants are ordered by
// activity.
func topicsFromPayload(payload *models.TopicsPayload) []models.Topic {
	topics := make([]models.Topic, 0, len(payload.Topics))
	for _, item := range payload.Topics {
		topic := models.Topic{
			Title:        strings.TrimSpace(item.Topic),
			Description:  strings.TrimSpace(item.TopicDescription),
			MessageCount: item.MessageCount,
		}
		if first := earliestID(item.MessageIDs); first != 0 {
			topic.MessageIDs = []int64{first}
		}
		if topic.MessageCount <= 0 {
			topic.MessageCount = len(item.MessageIDs)
		}

		for _, user := range item.Participants {
			topic.Participants = append(topic.Participants, models.Participant{
				Username:     user.Username,
				FirstName:    user.FirstName,
				LastName:     user.SecondName,
				MessageCount: user.MessageCount,
			})
		}
		sort.SliceStable(topic.Participants, func(i, j int) bool {
			return topic.Participants[i].MessageCount > topic.Participants[j].MessageCount
		})

		topics = append(topics, topic)
	}
	return topics
}

func earliestID(ids []int64) int64 {
	var first int64
	for _, id := range ids {
		if id > 0 && (first == 0 || id < first) {
			first = id
		}
	}
	return first
}

// rankTopics orders topics by size descending; ties break toward the topic
// whose retained message is older.
func rankTopics(topics []models.Topic, timeByID map[int64]int64) {
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].MessageCount != topics[j].MessageCount {
			return topics[i].MessageCount > topics[j].MessageCount
		}
		return timeByID[topics[i].FirstMessageID()] < timeByID[topics[j].FirstMessageID()]
	})
}

var (
	topicLinePattern = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s*(.+)$`)
	trailingIDs      = regexp.MustCompile(`[(\[]\s*([\d,\s]+)\s*[)\]]\s*$`)
)

// parseTextTopics recovers topics from the plain-text tier. Each topic line
// looks like "- Title. Description (123, 456)"; ids may also appear in square
// brackets. Lines without a recognizable shape are skipped, but a response
// yielding no topics at all is a validation failure.
func parseTextTopics(text string) ([]models.Topic, error) {
	var topics []models.Topic
	for _, line := range strings.Split(text, "\n") {
		m := topicLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		body := strings.TrimSpace(m[1])

		var ids []int64
		if idsMatch := trailingIDs.FindStringSubmatch(body); idsMatch != nil {
			body = strings.TrimSpace(strings.TrimSuffix(body, idsMatch[0]))
			for _, raw := range strings.Split(idsMatch[1], ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err == nil && id > 0 {
					ids = append(ids, id)
				}
			}
		}
		if body == "" {
			continue
		}

		title := body
		description := ""
		if idx := strings.Index(body, ". "); idx > 0 {
			title = body[:idx]
			description = strings.TrimSpace(body[idx+2:])
		} else {
			title = strings.TrimSuffix(title, ".")
		}

		topic := models.Topic{
			Title:        title,
			Description:  description,
			MessageCount: len(ids),
		}
		if first := earliestID(ids); first != 0 {
			topic.MessageIDs = []int64{first}
		}
		if topic.MessageCount == 0 {
			topic.MessageCount = 1
		}
		topics = append(topics, topic)
	}

	if len(topics) == 0 {
		return nil, &models.ValidationError{Reason: "no topics recognized in text response"}
	}
	return topics, nil
}

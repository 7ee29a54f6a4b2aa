package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/telegram-summary-bot/internal/models"
)

// Client wraps the OpenAI-compatible chat completion API with the three call
// shapes the extraction tiers need, plus a plain completion for the relevance
// filter. Every call runs under its own timeout and maps failures into the
// shared error taxonomy.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient creates a client for the configured endpoint. A custom base URL
// points the client at any OpenAI-compatible server.
func NewClient(apiKey, baseURL, model string, timeoutS int, logger zerolog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: time.Duration(timeoutS) * time.Second,
		logger:  logger.With().Str("component", "llm").Logger(),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// ExtractStructured calls the schema-validated tier: the response is forced
// to match the topics schema exactly.
func (c *Client) ExtractStructured(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error) {
	req := c.baseRequest(system, structuredUserInput(messagesText), maxTokens)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "chat_topics",
			Schema: topicsSchema,
			Strict: true,
		},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseTopicsPayload(content)
}

// ExtractStructuredFallback calls the secondary structured tier: JSON output
// is requested but not schema-enforced, so the payload is validated locally.
func (c *Client) ExtractStructuredFallback(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error) {
	req := c.baseRequest(system, structuredUserInput(messagesText), maxTokens)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseTopicsPayload(content)
}

// ExtractText calls the last-resort tier: free-form text in the delimiter
// format, parsed by the caller.
func (c *Client) ExtractText(ctx context.Context, system, messagesText string, maxTokens int) (string, error) {
	req := c.baseRequest(system, fallbackUserInput(messagesText), maxTokens)
	return c.complete(ctx, req)
}

// Complete runs a plain completion, used by the relevance filter.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := c.baseRequest(system, user, 0)
	return c.complete(ctx, req)
}

func (c *Client) baseRequest(system, user string, maxTokens int) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	return req
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", classifyError(err)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Dur("elapsed", time.Since(start)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion finished")

	if len(resp.Choices) == 0 {
		return "", &models.ValidationError{Reason: "response has no choices"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return "", &models.ValidationError{Reason: "response truncated at token limit"}
	}
	return choice.Message.Content, nil
}

// parseTopicsPayload decodes a structured-tier response body. A payload that
// does not decode, or that carries no topics at all, is a validation failure
// and pushes the extractor to the next tier.
func parseTopicsPayload(content string) (*models.TopicsPayload, error) {
	var payload models.TopicsPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, &models.ValidationError{Reason: "malformed topics JSON", Err: err}
	}
	for i, topic := range payload.Topics {
		if topic.Topic == "" {
			return nil, &models.ValidationError{Reason: fmt.Sprintf("topic %d has empty title", i)}
		}
	}
	return &payload, nil
}

// classifyError maps transport-level failures into the shared taxonomy so the
// extractor can decide between retrying, backing off and advancing a tier.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &models.RateLimitError{Err: err}
		}
		return &models.TransportError{Status: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return &models.RateLimitError{Err: err}
		}
		return &models.TransportError{Status: reqErr.HTTPStatusCode, Err: err}
	}

	return &models.TransportError{Err: err}
}

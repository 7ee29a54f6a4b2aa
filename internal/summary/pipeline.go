package summary

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/models"
)

// Store is the message persistence surface the pipeline needs.
type Store interface {
	QueryWindow(ctx context.Context, chatID int64, from, to time.Time) ([]models.Message, error)
	Archive(ctx context.Context, chatID int64, messageIDs []int64) error
}

// Renderer turns an assembled summary into outgoing message text.
type Renderer interface {
	Render(cfg *models.ChatSummaryConfig, result *models.SummaryResult) (string, error)
}

// Pipeline runs the full summarization sequence for one chat: window
// selection, message loading, optional relevance filtering, tiered
// extraction, assembly and rendering. Runs for the same chat are serialized;
// different chats proceed concurrently.
type Pipeline struct {
	store     Store
	filter    *Filter
	extractor *Extractor
	renderer  Renderer
	logger    zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewPipeline wires the summarization stages together.
func NewPipeline(store Store, filter *Filter, extractor *Extractor, renderer Renderer, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		filter:    filter,
		extractor: extractor,
		renderer:  renderer,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		locks:     make(map[int64]*sync.Mutex),
	}
}

// Summarize produces the summary text for a chat at the given moment. An
// empty window (or a window the relevance filter empties) is a successful
// no-op and returns "". Messages are archived only after the summary has
// been fully assembled and rendered; with the chat's no-archive flag set
// they stay available for the next run.
func (p *Pipeline) Summarize(ctx context.Context, cfg *models.ChatSummaryConfig, now time.Time) (string, error) {
	lock := p.chatLock(cfg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	window, err := SelectWindow(cfg, now)
	if err != nil {
		return "", err
	}

	messages, err := p.store.QueryWindow(ctx, cfg.ChatID, window.From, window.To)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		p.logger.Debug().Int64("chat_id", cfg.ChatID).Msg("Window is empty, nothing to summarize")
		return "", nil
	}

	retained := messages
	if cfg.RelevanceFilter && p.filter != nil {
		retained, err = p.filter.Apply(ctx, cfg, messages)
		if err != nil {
			return "", err
		}
		if len(retained) == 0 {
			p.logger.Info().
				Int64("chat_id", cfg.ChatID).
				Int("dropped", len(messages)).
				Msg("Relevance filter dropped the whole window")
			return "", nil
		}
	}

	topics, err := p.extractor.Extract(ctx, cfg, retained)
	if err != nil {
		return "", err
	}

	result := Assemble(cfg, topics, len(retained), window)
	text, err := p.renderer.Render(cfg, result)
	if err != nil {
		return "", err
	}

	if !cfg.NoArchive {
		ids := make([]int64, len(messages))
		for i, msg := range messages {
			ids[i] = msg.MessageID
		}
		if err := p.store.Archive(ctx, cfg.ChatID, ids); err != nil {
			return "", err
		}
	}

	p.logger.Info().
		Int64("chat_id", cfg.ChatID).
		Int("messages", len(retained)).
		Int("topics", len(result.Topics)).
		Msg("Summary generated")

	return text, nil
}

func (p *Pipeline) chatLock(chatID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[chatID] = lock
	}
	return lock
}

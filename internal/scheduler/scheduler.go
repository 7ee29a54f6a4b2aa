package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/config"
	"github.com/telegram-summary-bot/internal/models"
)

// Summarizer runs the summarization pipeline for one chat.
type Summarizer interface {
	Summarize(ctx context.Context, cfg *models.ChatSummaryConfig, now time.Time) (string, error)
}

// Sender delivers a finished summary to its chat.
type Sender interface {
	SendSummary(ctx context.Context, chatID int64, text string) error
}

// Ledger tracks the last successful daily run per chat.
type Ledger interface {
	LastRun(chatID int64) string
	Record(ctx context.Context, chatID int64, localDate string, ranAt time.Time) error
}

// ChatLister enumerates the chats that currently have unsummarized messages.
type ChatLister interface {
	DistinctChatIDs(ctx context.Context) ([]int64, error)
}

// Scheduler drives the daily summaries. Once a minute it checks every known
// chat: a chat is due when its local time has passed the configured daily
// trigger and the ledger has no successful run for the current local date.
// The ledger is written only after the summary has been delivered, so a
// failed run is retried on later ticks the same day; at most one run per
// chat per local day ever succeeds.
type Scheduler struct {
	cron     *cron.Cron
	store    ChatLister
	chats    *config.ChatConfig
	ledger   Ledger
	pipeline Summarizer
	sender   Sender
	logger   zerolog.Logger

	mu      sync.Mutex
	running map[int64]bool
	wg      sync.WaitGroup
}

// NewScheduler wires the daily scheduler.
func NewScheduler(store ChatLister, chats *config.ChatConfig, ledger Ledger, pipeline Summarizer, sender Sender, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		store:    store,
		chats:    chats,
		ledger:   ledger,
		pipeline: pipeline,
		sender:   sender,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		running:  make(map[int64]bool),
	}
}

// Start begins the per-minute due checks.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		s.Tick(ctx, time.Now())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Msg("Daily scheduler started")
	return nil
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("Daily scheduler stopped")
}

// Tick evaluates every known chat once. Each due chat runs in its own
// goroutine; a chat already mid-run is skipped, and one chat's failure never
// touches the others.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	chatIDs, err := s.store.DistinctChatIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list chats")
		return
	}

	for _, chatID := range chatIDs {
		cfg := s.chats.Resolve(chatID, "")
		if !cfg.DailyEnabled {
			continue
		}

		localDate, due, err := s.due(cfg, now)
		if err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Skipping chat with invalid schedule config")
			continue
		}
		if !due {
			continue
		}

		s.mu.Lock()
		if s.running[chatID] {
			s.mu.Unlock()
			continue
		}
		s.running[chatID] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go func(cfg *models.ChatSummaryConfig, localDate string) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.running, cfg.ChatID)
				s.mu.Unlock()
			}()
			s.runChat(ctx, cfg, localDate, now)
		}(cfg, localDate)
	}
}

func (s *Scheduler) runChat(ctx context.Context, cfg *models.ChatSummaryConfig, localDate string, now time.Time) {
	text, err := s.pipeline.Summarize(ctx, cfg, now)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", cfg.ChatID).Msg("Daily summarization failed")
		return
	}

	if text != "" {
		if err := s.sender.SendSummary(ctx, cfg.ChatID, text); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", cfg.ChatID).Msg("Failed to deliver daily summary")
			return
		}
	}

	if err := s.ledger.Record(ctx, cfg.ChatID, localDate, now); err != nil {
		s.logger.Error().Err(err).Int64("chat_id", cfg.ChatID).Msg("Failed to record daily run")
		return
	}

	s.logger.Info().
		Int64("chat_id", cfg.ChatID).
		Str("date", localDate).
		Msg("Daily summary complete")
}

// due reports whether the chat's daily trigger has passed for a local date
// that has no recorded run yet.
func (s *Scheduler) due(cfg *models.ChatSummaryConfig, now time.Time) (string, bool, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		parsed, err := config.ParseTimezone(cfg.Timezone)
		if err != nil {
			return "", false, err
		}
		loc = parsed
	}

	local := now.In(loc)
	localDate := local.Format("2006-01-02")
	if s.ledger.LastRun(cfg.ChatID) == localDate {
		return localDate, false, nil
	}

	hour, minute, err := config.ParseClock("daily_time", cfg.DailyTime)
	if err != nil {
		return "", false, err
	}

	trigger := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	return localDate, !local.Before(trigger), nil
}

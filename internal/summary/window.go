package summary

import (
	"time"

	"github.com/telegram-summary-bot/internal/config"
	"github.com/telegram-summary-bot/internal/models"
)

// Window is the half-open time range [From, To) a summarization run covers.
type Window struct {
	From time.Time
	To   time.Time
}

// SelectWindow computes the summarization window for a chat at the given
// moment. With a day-start anchor configured, the window opens at the most
// recent occurrence of that chat-local clock time; without one, it covers the
// trailing 24 hours. The window never extends into the future.
func SelectWindow(cfg *models.ChatSummaryConfig, now time.Time) (Window, error) {
	if cfg.DayStartTime == "" {
		return Window{From: now.Add(-24 * time.Hour), To: now}, nil
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		parsed, err := config.ParseTimezone(cfg.Timezone)
		if err != nil {
			return Window{}, err
		}
		loc = parsed
	}

	hour, minute, err := config.ParseClock("day_start_time", cfg.DayStartTime)
	if err != nil {
		return Window{}, err
	}

	local := now.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if anchor.After(local) {
		anchor = anchor.AddDate(0, 0, -1)
	}

	return Window{From: anchor, To: now}, nil
}

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/models"
	"gorm.io/gorm/clause"
)

// RunLedger records the last successful daily run per chat. Entries are
// keyed by the chat-local calendar date, so a run happens at most once per
// local day. The ledger is durable: loaded at startup, written through to
// the database after every successful run.
type RunLedger struct {
	client *Client
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[int64]string
}

// NewRunLedger creates a ledger backed by the storage client.
func NewRunLedger(client *Client, logger zerolog.Logger) *RunLedger {
	return &RunLedger{
		client: client,
		logger: logger.With().Str("component", "run_ledger").Logger(),
		cache:  make(map[int64]string),
	}
}

// Load reads all ledger rows into memory.
func (l *RunLedger) Load(ctx context.Context) error {
	var records []models.RunRecord
	if err := l.client.db.WithContext(ctx).Find(&records).Error; err != nil {
		return &models.StoreError{Op: "load_run_ledger", Err: err}
	}

	l.mu.Lock()
	l.cache = make(map[int64]string, len(records))
	for _, rec := range records {
		l.cache[rec.ChatID] = rec.RunDate
	}
	l.mu.Unlock()

	l.logger.Info().Int("entries", len(records)).Msg("Run ledger loaded")
	return nil
}

// LastRun returns the stored local run date for a chat, or "" when the chat
// has never run.
func (l *RunLedger) LastRun(chatID int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache[chatID]
}

// Record persists a successful run for the given chat-local date. The row is
// written before the in-memory cache updates, so a failed write is retried
// on the next tick rather than silently lost.
func (l *RunLedger) Record(ctx context.Context, chatID int64, localDate string, ranAt time.Time) error {
	rec := models.RunRecord{ChatID: chatID, RunDate: localDate, RanAt: ranAt.UTC()}
	err := l.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_date", "ran_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return &models.StoreError{Op: "record_run", Err: err}
	}

	l.mu.Lock()
	l.cache[chatID] = localDate
	l.mu.Unlock()

	l.logger.Debug().
		Int64("chat_id", chatID).
		Str("date", localDate).
		Msg("Daily run recorded")

	return nil
}

package storage

import (
	"context"
	"time"

	"github.com/telegram-summary-bot/internal/models"
	"gorm.io/gorm/clause"
)

// SaveMessage inserts or updates a message. Edited messages replace the
// stored row; (chat_id, message_id) is the identity.
func (c *Client) SaveMessage(ctx context.Context, msg *models.Message) error {
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"date", "text", "kind", "user_id", "username", "first_name", "last_name", "forward_id",
			}),
		}).
		Create(msg).Error
	if err != nil {
		return &models.StoreError{Op: "save_message", Err: err}
	}

	c.logger.Debug().
		Int64("chat_id", msg.ChatID).
		Int64("message_id", msg.MessageID).
		Str("kind", string(msg.Kind)).
		Msg("Message saved")

	return nil
}

// QueryWindow returns the non-archived messages of a chat inside
// [from, to), ordered by timestamp ascending.
func (c *Client) QueryWindow(ctx context.Context, chatID int64, from, to time.Time) ([]models.Message, error) {
	var messages []models.Message
	err := c.db.WithContext(ctx).
		Where("chat_id = ? AND archived = ? AND date >= ? AND date < ?",
			chatID, false, from.Unix(), to.Unix()).
		Order("date ASC").
		Find(&messages).Error
	if err != nil {
		return nil, &models.StoreError{Op: "query_window", Err: err}
	}
	return messages, nil
}

// Archive marks the given messages of a chat as already summarized, which
// excludes them from every subsequent window query.
func (c *Client) Archive(ctx context.Context, chatID int64, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	err := c.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_id = ? AND message_id IN ?", chatID, messageIDs).
		Update("archived", true).Error
	if err != nil {
		return &models.StoreError{Op: "archive", Err: err}
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("count", len(messageIDs)).
		Msg("Messages archived")

	return nil
}

// Clear archives every remaining message of a chat (soft delete).
func (c *Client) Clear(ctx context.Context, chatID int64) error {
	err := c.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_id = ? AND archived = ?", chatID, false).
		Update("archived", true).Error
	if err != nil {
		return &models.StoreError{Op: "clear", Err: err}
	}
	return nil
}

// DistinctChatIDs returns the chats that currently have non-archived
// messages. Used by the daily scheduler to know which chats to consider.
func (c *Client) DistinctChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := c.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("archived = ?", false).
		Distinct("chat_id").
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, &models.StoreError{Op: "distinct_chat_ids", Err: err}
	}
	return ids, nil
}

// DeleteOlderThan hard-deletes messages older than the given number of days,
// archived or not. Returns the number of deleted rows.
func (c *Client) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -days).Unix()
	res := c.db.WithContext(ctx).
		Where("date < ?", threshold).
		Delete(&models.Message{})
	if res.Error != nil {
		return 0, &models.StoreError{Op: "delete_older_than", Err: res.Error}
	}

	c.logger.Info().
		Int("days", days).
		Int64("deleted", res.RowsAffected).
		Msg("Old messages deleted")

	return res.RowsAffected, nil
}

package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/telegram-summary-bot/internal/config"
	"github.com/telegram-summary-bot/internal/models"
)

// Assemble applies the chat's presentation policy to ranked topics and
// produces the final summary structure. It is pure: no I/O, no clock reads.
func Assemble(cfg *models.ChatSummaryConfig, topics []models.Topic, messageCount int, window Window) *models.SummaryResult {
	selected := make([]models.Topic, 0, len(topics))
	for _, topic := range topics {
		if cfg.OnlyTop && cfg.MinMessages > 0 && topic.MessageCount < cfg.MinMessages {
			continue
		}
		selected = append(selected, topic)
	}

	if cfg.MaxTopics > 0 && len(selected) > cfg.MaxTopics {
		selected = selected[:cfg.MaxTopics]
	}

	for i := range selected {
		selected[i].Link = MessageLink(cfg.ChatID, selected[i].FirstMessageID())
		selected[i].Participants = truncateParticipants(selected[i].Participants, cfg.ParticipantListLength)
	}

	return &models.SummaryResult{
		ChatID:       cfg.ChatID,
		Header:       header(cfg, window),
		Footer:       fmt.Sprintf("%d messages summarized", messageCount),
		Topics:       selected,
		MessageCount: messageCount,
	}
}

func header(cfg *models.ChatSummaryConfig, window Window) string {
	loc := time.UTC
	if cfg.Timezone != "" {
		if parsed, err := config.ParseTimezone(cfg.Timezone); err == nil {
			loc = parsed
		}
	}
	return "Chat summary for " + window.To.In(loc).Format("2006-01-02")
}

func truncateParticipants(participants []models.Participant, limit int) []models.Participant {
	if limit > 0 && len(participants) > limit {
		return participants[:limit]
	}
	return participants
}

// MessageLink builds a t.me deep link to a message. Supergroup and channel
// ids carry a -100 prefix on the Bot API, which the web link format drops;
// private chats have no linkable form and get no link.
func MessageLink(chatID, messageID int64) string {
	if chatID >= 0 || messageID == 0 {
		return ""
	}
	internal := strings.TrimPrefix(fmt.Sprintf("%d", chatID), "-100")
	internal = strings.TrimPrefix(internal, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", internal, messageID)
}

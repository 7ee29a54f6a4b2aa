package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/telegram-summary-bot/internal/models"
)

// DefaultSummarizationPrompt is the base system instruction for topic
// extraction, used when the chat has no custom prompt configured.
const DefaultSummarizationPrompt = `You are an assistant that condenses group chat history into discussion topics.
Group the messages below into distinct discussion topics. For every topic provide:
- a short title (2-5 words)
- a one-sentence description
- the id of the earliest message where the topic started
- how many messages belong to the topic in total
- the list of participants with their per-person message counts, most active first
Ignore greetings, stickers and small talk that form no real discussion.`

// StructuredSystemPrompt reinforces the structured output contract for the
// schema-validated tiers.
const StructuredSystemPrompt = `Return the result strictly as JSON matching the provided schema.
The message_ids array of every topic must contain exactly one element: the id of the earliest message of that topic.
message_count must be the true number of messages grouped into the topic, never the number of retained ids.
Sort participants of every topic by message_count descending.`

// fallbackFormatPrompt documents the delimiter format for the plain-text tier.
const fallbackFormatPrompt = `List every topic on its own line in exactly this format:
- Title. One-sentence description (message_id)
where message_id is the id of the earliest message of the topic, in parentheses at the end of the line.
No numbering, no extra commentary.`

// RelevancePrompt asks the service to pick the messages worth summarizing.
const RelevancePrompt = `You filter chat messages before summarization.
From the numbered messages below, pick the ones that carry real discussion content and are worth summarizing.
Drop greetings, bot commands, stickers and throwaway one-liners.
Reply with a JSON array of the kept message ids and nothing else, for example: [12, 15, 44]`

// structuredUserInput frames the message dump for the structured tiers.
func structuredUserInput(messagesText string) string {
	return "Messages:\n" + messagesText
}

// fallbackUserInput frames the message dump for the plain-text tier.
func fallbackUserInput(messagesText string) string {
	return fallbackFormatPrompt + "\n\nMessages:\n" + messagesText
}

// LoadPrompt reads a custom prompt file, as referenced from the chat config.
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// FormatMessages renders stored messages into the prompt line format
// "id:[N] author: ... text: ...", one message per line. The author segment
// carries the full name, handle and numeric id when known; ref_id links
// replies and forwards.
func FormatMessages(messages []models.Message) string {
	var sb strings.Builder
	for i := range messages {
		msg := &messages[i]

		var author []string
		name := strings.TrimSpace(strings.TrimSpace(msg.FirstName) + " " + strings.TrimSpace(msg.LastName))
		if name != "" {
			author = append(author, name)
		}
		if msg.Username != "" {
			author = append(author, "@"+strings.TrimPrefix(msg.Username, "@"))
		}
		if msg.UserID != 0 {
			author = append(author, fmt.Sprintf("id=%d", msg.UserID))
		}

		sb.WriteString(fmt.Sprintf("id:[%d]", msg.MessageID))
		if len(author) > 0 {
			sb.WriteString(" author: " + strings.Join(author, " "))
		}
		if msg.ForwardID != 0 {
			sb.WriteString(fmt.Sprintf(" ref_id: %d", msg.ForwardID))
		}
		sb.WriteString(" text: " + msg.Text + "\n")
	}
	return sb.String()
}

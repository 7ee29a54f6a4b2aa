package models

import (
	"fmt"
	"strings"
	"time"
)

// MessageKind describes how a stored message entered the system.
type MessageKind string

const (
	// KindText is a plain text chat message.
	KindText MessageKind = "text"

	// KindVoice is a transcript produced from a voice message.
	KindVoice MessageKind = "voice"

	// KindLink is a stored summary of a linked page or video.
	KindLink MessageKind = "link"
)

// Message is one stored chat message. Rows are only ever mutated to set
// Archived after a successful summarization run.
type Message struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	ChatID    int64       `gorm:"not null;uniqueIndex:idx_chat_message"`
	MessageID int64       `gorm:"not null;uniqueIndex:idx_chat_message"`
	Date      int64       `gorm:"not null;index"` // unix seconds, UTC
	Text      string      `gorm:"type:text;not null"`
	Kind      MessageKind `gorm:"size:16;default:text"`
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	ForwardID int64
	Archived  bool `gorm:"default:false;index"`
}

// TableName pins the table name.
func (Message) TableName() string { return "messages" }

// Timestamp returns the message time as UTC.
func (m *Message) Timestamp() time.Time {
	return time.Unix(m.Date, 0).UTC()
}

// DisplayName builds a human-readable sender name, preferring full name,
// then handle, then a numeric placeholder.
func (m *Message) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
	if name != "" {
		return name
	}
	if m.Username != "" {
		return "@" + strings.TrimPrefix(m.Username, "@")
	}
	return fmt.Sprintf("User%d", m.UserID)
}

// RunRecord is the durable ledger entry for a chat's last successful daily
// summarization. RunDate is the calendar date in the chat's own timezone.
type RunRecord struct {
	ChatID  int64  `gorm:"primaryKey"`
	RunDate string `gorm:"size:10;not null"` // YYYY-MM-DD, chat-local
	RanAt   time.Time
}

// TableName names the ledger table.
func (RunRecord) TableName() string { return "daily_runs" }

// Participant is one ranked contributor to a topic.
type Participant struct {
	Username     string
	FirstName    string
	LastName     string
	MessageCount int
}

// DisplayName builds the participant's visible name.
func (p *Participant) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name != "" {
		return name
	}
	if p.Username != "" {
		return "@" + strings.TrimPrefix(p.Username, "@")
	}
	return ""
}

// Handle returns the participant's username without the leading @, or "".
func (p *Participant) Handle() string {
	return strings.TrimPrefix(p.Username, "@")
}

// Topic is one extracted discussion cluster. Only the earliest contributing
// message id is retained; MessageCount tracks the true size independently.
type Topic struct {
	Title        string
	Description  string
	MessageIDs   []int64
	MessageCount int
	Participants []Participant
	Link         string
}

// FirstMessageID returns the retained earliest message id, or 0.
func (t *Topic) FirstMessageID() int64 {
	if len(t.MessageIDs) == 0 {
		return 0
	}
	first := t.MessageIDs[0]
	for _, id := range t.MessageIDs[1:] {
		if id < first {
			first = id
		}
	}
	return first
}

// SummaryResult is the assembled output of one pipeline run, ready for the
// template renderer.
type SummaryResult struct {
	ChatID       int64
	Header       string
	Footer       string
	Topics       []Topic
	MessageCount int // messages in the summarized window
}

// ChatSummaryConfig is the per-chat summarization policy, resolved from the
// chat config file. Treated as an immutable snapshot per invocation.
type ChatSummaryConfig struct {
	ChatID   int64
	Username string

	Timezone     string // IANA name or ±HH:MM offset
	DayStartTime string // "HH:MM", window anchor; empty = trailing 24h
	DailyTime    string // "HH:MM", scheduled run time
	DailyEnabled bool

	OnlyTop     bool
	MinMessages int
	MaxTopics   int // 0 = unlimited

	ShowParticipants      bool
	ParticipantListLength int // 0 = unlimited
	ShowParticipantLinks  bool

	NoArchive       bool
	MaxOutputSize   int // rendered size cap; 0 = Telegram default
	MaxOutputTokens int // remote call output cap; 0 = unlimited

	RelevanceFilter     bool
	RelevanceFailClosed bool
	RelevanceBatchChars int

	PromptPath           string
	StructuredPromptPath string
	TemplatePath         string
}

// BotConfig is the global configuration loaded from the environment.
type BotConfig struct {
	TelegramToken string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout int // seconds per remote call

	OpenAIMinDelayS    float64
	OpenAIMaxRetries   int
	OpenAIBackoffBaseS float64
	OpenAIBackoffMaxS  float64

	SQLitePath     string
	ChatConfigPath string

	LogLevel    string
	Environment string
}

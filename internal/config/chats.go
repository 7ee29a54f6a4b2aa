package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/models"
	"gopkg.in/yaml.v3"
)

// topicsSection holds topic filtering and display policy. Pointer fields
// distinguish "unset" from explicit zero values during merging.
type topicsSection struct {
	OnlyTop                *bool   `yaml:"only_top"`
	MinMessages            *int    `yaml:"min_messages"`
	MaxTopics              *int    `yaml:"max_topics"`
	ShowUsers              *bool   `yaml:"show_users"`
	UserListLength         *int    `yaml:"user_list_length"`
	ShowUserLinks          *bool   `yaml:"show_user_links"`
	Prompt                 *string `yaml:"prompt"`
	StructuredSystemPrompt *string `yaml:"structured_system_prompt"`
}

// summarizeSection holds windowing, scheduling and output policy.
type summarizeSection struct {
	DailyEnabled    *bool   `yaml:"daily_enabled"`
	DailyTime       *string `yaml:"daily_time"`
	DayStartTime    *string `yaml:"day_start_time"`
	NoArchive       *bool   `yaml:"no_archive"`
	MaxOutputTokens *int    `yaml:"max_output_tokens"`
	MaxOutputSize   *int    `yaml:"max_output_size"`
	Template        *string `yaml:"template"`
}

// relevanceSection gates the optional pre-extraction relevance filter.
type relevanceSection struct {
	Enabled    *bool `yaml:"enabled"`
	FailClosed *bool `yaml:"fail_closed"`
	BatchChars *int  `yaml:"batch_chars"`
}

type chatSettings struct {
	Timezone  *string          `yaml:"timezone"`
	Topics    topicsSection    `yaml:"topics"`
	Summarize summarizeSection `yaml:"summarize"`
	Relevance relevanceSection `yaml:"relevance"`
}

type chatConfigFile struct {
	Defaults chatSettings            `yaml:"defaults"`
	Chats    map[string]chatSettings `yaml:"chats"`
}

// ChatConfig resolves per-chat summarization policy from a YAML file.
// Settings merge with priority: defaults < entry by chat id < entry by
// chat username.
type ChatConfig struct {
	path   string
	logger zerolog.Logger

	mu   sync.RWMutex
	file chatConfigFile
}

// NewChatConfig creates a resolver for the given config file path.
func NewChatConfig(path string, logger zerolog.Logger) *ChatConfig {
	return &ChatConfig{
		path:   path,
		logger: logger.With().Str("component", "chat_config").Logger(),
	}
}

// Load reads the config file. A missing file is not an error: every chat
// then resolves to built-in defaults.
func (c *ChatConfig) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn().Str("path", c.path).Msg("Chat config file not found, using defaults")
			c.mu.Lock()
			c.file = chatConfigFile{}
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read chat config %s: %w", c.path, err)
	}

	var file chatConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse chat config %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.file = file
	c.mu.Unlock()

	c.logger.Info().
		Str("path", c.path).
		Int("chat_entries", len(file.Chats)).
		Msg("Chat config loaded")

	return nil
}

// Resolve returns the effective policy snapshot for a chat.
func (c *ChatConfig) Resolve(chatID int64, username string) *models.ChatSummaryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	merged := c.file.Defaults
	if entry, ok := c.file.Chats[strconv.FormatInt(chatID, 10)]; ok {
		merged = mergeSettings(merged, entry)
	}
	if handle := normalizeUsername(username); handle != "" {
		if entry, ok := c.file.Chats[handle]; ok {
			merged = mergeSettings(merged, entry)
		}
	}

	cfg := &models.ChatSummaryConfig{
		ChatID:   chatID,
		Username: normalizeUsername(username),

		Timezone:     strDefault(merged.Timezone, ""),
		DayStartTime: strDefault(merged.Summarize.DayStartTime, ""),
		DailyTime:    strDefault(merged.Summarize.DailyTime, "23:00"),
		DailyEnabled: boolDefault(merged.Summarize.DailyEnabled, false),

		OnlyTop:     boolDefault(merged.Topics.OnlyTop, false),
		MinMessages: intDefault(merged.Topics.MinMessages, 0),
		MaxTopics:   intDefault(merged.Topics.MaxTopics, 0),

		ShowParticipants:      boolDefault(merged.Topics.ShowUsers, false),
		ParticipantListLength: intDefault(merged.Topics.UserListLength, 10),
		ShowParticipantLinks:  boolDefault(merged.Topics.ShowUserLinks, true),

		NoArchive:       boolDefault(merged.Summarize.NoArchive, false),
		MaxOutputSize:   intDefault(merged.Summarize.MaxOutputSize, 0),
		MaxOutputTokens: intDefault(merged.Summarize.MaxOutputTokens, 0),

		RelevanceFilter:     boolDefault(merged.Relevance.Enabled, false),
		RelevanceFailClosed: boolDefault(merged.Relevance.FailClosed, false),
		RelevanceBatchChars: intDefault(merged.Relevance.BatchChars, 8000),

		PromptPath:           strDefault(merged.Topics.Prompt, ""),
		StructuredPromptPath: strDefault(merged.Topics.StructuredSystemPrompt, ""),
		TemplatePath:         strDefault(merged.Summarize.Template, ""),
	}

	return cfg
}

// mergeSettings overlays override onto base, field by field.
func mergeSettings(base, override chatSettings) chatSettings {
	out := base
	if override.Timezone != nil {
		out.Timezone = override.Timezone
	}

	if override.Topics.OnlyTop != nil {
		out.Topics.OnlyTop = override.Topics.OnlyTop
	}
	if override.Topics.MinMessages != nil {
		out.Topics.MinMessages = override.Topics.MinMessages
	}
	if override.Topics.MaxTopics != nil {
		out.Topics.MaxTopics = override.Topics.MaxTopics
	}
	if override.Topics.ShowUsers != nil {
		out.Topics.ShowUsers = override.Topics.ShowUsers
	}
	if override.Topics.UserListLength != nil {
		out.Topics.UserListLength = override.Topics.UserListLength
	}
	if override.Topics.ShowUserLinks != nil {
		out.Topics.ShowUserLinks = override.Topics.ShowUserLinks
	}
	if override.Topics.Prompt != nil {
		out.Topics.Prompt = override.Topics.Prompt
	}
	if override.Topics.StructuredSystemPrompt != nil {
		out.Topics.StructuredSystemPrompt = override.Topics.StructuredSystemPrompt
	}

	if override.Summarize.DailyEnabled != nil {
		out.Summarize.DailyEnabled = override.Summarize.DailyEnabled
	}
	if override.Summarize.DailyTime != nil {
		out.Summarize.DailyTime = override.Summarize.DailyTime
	}
	if override.Summarize.DayStartTime != nil {
		out.Summarize.DayStartTime = override.Summarize.DayStartTime
	}
	if override.Summarize.NoArchive != nil {
		out.Summarize.NoArchive = override.Summarize.NoArchive
	}
	if override.Summarize.MaxOutputTokens != nil {
		out.Summarize.MaxOutputTokens = override.Summarize.MaxOutputTokens
	}
	if override.Summarize.MaxOutputSize != nil {
		out.Summarize.MaxOutputSize = override.Summarize.MaxOutputSize
	}
	if override.Summarize.Template != nil {
		out.Summarize.Template = override.Summarize.Template
	}

	if override.Relevance.Enabled != nil {
		out.Relevance.Enabled = override.Relevance.Enabled
	}
	if override.Relevance.FailClosed != nil {
		out.Relevance.FailClosed = override.Relevance.FailClosed
	}
	if override.Relevance.BatchChars != nil {
		out.Relevance.BatchChars = override.Relevance.BatchChars
	}

	return out
}

func normalizeUsername(username string) string {
	handle := strings.TrimSpace(username)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}

func strDefault(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func boolDefault(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func intDefault(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

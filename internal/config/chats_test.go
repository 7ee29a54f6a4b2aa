package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const testChatConfig = `
defaults:
  timezone: "+03:00"
  topics:
    min_messages: 5
    show_users: true
  summarize:
    daily_enabled: true
    daily_time: "21:00"

chats:
  "-1001234567":
    topics:
      only_top: true
      max_topics: 3
    summarize:
      daily_time: "22:30"
  "mychat":
    timezone: "Europe/Berlin"
    summarize:
      no_archive: true
  "-1009999999":
    summarize:
      daily_enabled: false
`

func loadTestConfig(t *testing.T, content string) *ChatConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cc := NewChatConfig(path, zerolog.Nop())
	if err := cc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cc
}

func TestResolve_DefaultsOnly(t *testing.T) {
	cc := loadTestConfig(t, testChatConfig)

	cfg := cc.Resolve(-1005555555, "")
	if cfg.Timezone != "+03:00" {
		t.Errorf("Timezone = %q, want +03:00", cfg.Timezone)
	}
	if cfg.DailyTime != "21:00" {
		t.Errorf("DailyTime = %q, want 21:00", cfg.DailyTime)
	}
	if !cfg.DailyEnabled {
		t.Error("DailyEnabled should come from defaults")
	}
	if cfg.MinMessages != 5 {
		t.Errorf("MinMessages = %d, want 5", cfg.MinMessages)
	}
	if cfg.OnlyTop {
		t.Error("OnlyTop should be false without an override")
	}
}

func TestResolve_ChatIDOverridesDefaults(t *testing.T) {
	cc := loadTestConfig(t, testChatConfig)

	cfg := cc.Resolve(-1001234567, "")
	if !cfg.OnlyTop {
		t.Error("OnlyTop should be overridden by the chat entry")
	}
	if cfg.MaxTopics != 3 {
		t.Errorf("MaxTopics = %d, want 3", cfg.MaxTopics)
	}
	if cfg.DailyTime != "22:30" {
		t.Errorf("DailyTime = %q, want 22:30", cfg.DailyTime)
	}
	// Untouched defaults survive the merge.
	if cfg.MinMessages != 5 {
		t.Errorf("MinMessages = %d, want 5", cfg.MinMessages)
	}
	if cfg.Timezone != "+03:00" {
		t.Errorf("Timezone = %q, want +03:00", cfg.Timezone)
	}
}

func TestResolve_UsernameOverridesChatID(t *testing.T) {
	cc := loadTestConfig(t, testChatConfig)

	cfg := cc.Resolve(-1001234567, "@MyChat")
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want Europe/Berlin from username entry", cfg.Timezone)
	}
	if !cfg.NoArchive {
		t.Error("NoArchive should come from the username entry")
	}
	// Chat id entry still applies where the username entry is silent.
	if cfg.MaxTopics != 3 {
		t.Errorf("MaxTopics = %d, want 3", cfg.MaxTopics)
	}
}

func TestResolve_ExplicitFalseBeatsDefaultTrue(t *testing.T) {
	cc := loadTestConfig(t, testChatConfig)

	cfg := cc.Resolve(-1009999999, "")
	if cfg.DailyEnabled {
		t.Error("DailyEnabled false in the chat entry should override the default true")
	}
}

func TestResolve_BuiltinDefaults(t *testing.T) {
	cc := loadTestConfig(t, "chats: {}\n")

	cfg := cc.Resolve(42, "")
	if cfg.DailyTime != "23:00" {
		t.Errorf("DailyTime = %q, want built-in 23:00", cfg.DailyTime)
	}
	if cfg.ParticipantListLength != 10 {
		t.Errorf("ParticipantListLength = %d, want 10", cfg.ParticipantListLength)
	}
	if !cfg.ShowParticipantLinks {
		t.Error("ShowParticipantLinks should default to true")
	}
	if cfg.RelevanceBatchChars != 8000 {
		t.Errorf("RelevanceBatchChars = %d, want 8000", cfg.RelevanceBatchChars)
	}
	if cfg.DailyEnabled {
		t.Error("DailyEnabled should default to false")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cc := NewChatConfig(filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop())
	if err := cc.Load(); err != nil {
		t.Fatalf("Load of missing file should not fail: %v", err)
	}
	cfg := cc.Resolve(1, "")
	if cfg.DailyTime != "23:00" {
		t.Errorf("DailyTime = %q, want built-in default", cfg.DailyTime)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chats: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	cc := NewChatConfig(path, zerolog.Nop())
	if err := cc.Load(); err == nil {
		t.Error("Load should fail on malformed YAML")
	}
}

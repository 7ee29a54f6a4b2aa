package config

import (
	"errors"
	"testing"
	"time"

	"github.com/telegram-summary-bot/internal/models"
)

func TestParseTimezone_FixedOffsets(t *testing.T) {
	tests := []struct {
		tz     string
		offset int // seconds east of UTC
	}{
		{"+03:00", 3 * 3600},
		{"-05:30", -(5*3600 + 30*60)},
		{"+0:00", 0},
		{"+03:00:30", 3*3600 + 30},
		{"-11:45", -(11*3600 + 45*60)},
	}

	for _, tt := range tests {
		loc, err := ParseTimezone(tt.tz)
		if err != nil {
			t.Errorf("ParseTimezone(%q): %v", tt.tz, err)
			continue
		}
		_, offset := time.Date(2026, 6, 1, 12, 0, 0, 0, loc).Zone()
		if offset != tt.offset {
			t.Errorf("ParseTimezone(%q) offset = %d, want %d", tt.tz, offset, tt.offset)
		}
	}
}

func TestParseTimezone_IANA(t *testing.T) {
	loc, err := ParseTimezone("Europe/Moscow")
	if err != nil {
		t.Fatalf("ParseTimezone: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Errorf("location = %q, want Europe/Moscow", loc.String())
	}
}

func TestParseTimezone_Invalid(t *testing.T) {
	for _, tz := range []string{"", "03:00", "+25:00", "+03:70", "Not/AZone", "UTC+3"} {
		_, err := ParseTimezone(tz)
		if err == nil {
			t.Errorf("ParseTimezone(%q) should fail", tz)
			continue
		}
		var cfgErr *models.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("ParseTimezone(%q) error type = %T, want *models.ConfigError", tz, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		value   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"23:00", 23, 0, false},
		{"0:05", 0, 5, false},
		{"09:30", 9, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		hour, minute, err := ParseClock("daily_time", tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) should fail", tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tt.value, err)
			continue
		}
		if hour != tt.hour || minute != tt.minute {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.value, hour, minute, tt.hour, tt.minute)
		}
	}
}

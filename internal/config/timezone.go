package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/telegram-summary-bot/internal/models"
)

// utcOffsetPattern matches fixed offsets like "+03:00", "-05:30" or
// "+03:00:00".
var utcOffsetPattern = regexp.MustCompile(`^([+-])(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// ParseTimezone resolves a timezone string in either IANA form
// ("Europe/Moscow") or fixed-offset form ("+03:00"). Returns a ConfigError
// when the string is neither.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, &models.ConfigError{Field: "timezone", Value: tz}
	}

	if m := utcOffsetPattern.FindStringSubmatch(tz); m != nil {
		hours := atoi(m[2])
		minutes := atoi(m[3])
		seconds := 0
		if m[4] != "" {
			seconds = atoi(m[4])
		}
		if hours > 23 || minutes > 59 || seconds > 59 {
			return nil, &models.ConfigError{Field: "timezone", Value: tz, Err: fmt.Errorf("offset out of range")}
		}
		offset := hours*3600 + minutes*60 + seconds
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone("UTC"+m[1]+m[2]+":"+m[3], offset), nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &models.ConfigError{Field: "timezone", Value: tz, Err: err}
	}
	return loc, nil
}

// ParseClock parses an "HH:MM" time-of-day string.
func ParseClock(field, value string) (hour, minute int, err error) {
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return 0, 0, &models.ConfigError{Field: field, Value: value, Err: err}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, &models.ConfigError{Field: field, Value: value, Err: fmt.Errorf("hour/minute out of range")}
	}
	return h, m, nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

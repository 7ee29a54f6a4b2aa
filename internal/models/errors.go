package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrExtractionFailed is returned when every extraction tier has been
// exhausted without producing a usable payload.
var ErrExtractionFailed = errors.New("topic extraction failed: all tiers exhausted")

// ConfigError reports an invalid per-chat policy, such as an unparseable
// timezone or time-of-day string. It is fatal for that chat's run.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid config %s=%q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid config %s=%q", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a network or server failure on a remote call.
// Retryable within a tier.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is the rate-limited subtype of a transport failure. It
// triggers exponential backoff before the next attempt.
type RateLimitError struct {
	RetryAfter time.Duration // 0 when the server gave no hint
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ValidationError reports a response that failed schema validation or
// parsing. Never retried within a tier; the extractor advances instead.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError reports a message store failure, fatal for the run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is a rate-limit response.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsRetryable reports whether an attempt may be repeated within the same
// tier. Rate limits, network failures and server errors are retryable;
// client-side rejections (4xx) and validation failures are not.
func IsRetryable(err error) bool {
	if IsRateLimit(err) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status == 0 || te.Status == 408 || te.Status >= 500
	}
	return false
}

// IsValidation reports whether err is a payload validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

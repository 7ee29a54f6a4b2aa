package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// jitterMax spreads waits so retries across chats don't synchronize.
const jitterMax = 300 * time.Millisecond

// Limiter throttles outbound calls to the remote extraction service,
// process-wide. It serializes the start of consecutive calls with a minimum
// delay and computes capped exponential backoff after rate-limit responses.
// The minimum-delay gate and the backoff are independent: backoff extends
// the wait, never shortens it.
type Limiter struct {
	minDelay    time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	maxRetries  int
	logger      zerolog.Logger

	mu   sync.Mutex
	next time.Time // earliest permitted start of the next call

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewLimiter creates a limiter from the global throttle settings.
func NewLimiter(minDelayS float64, maxRetries int, backoffBaseS, backoffMaxS float64, logger zerolog.Logger) *Limiter {
	return &Limiter{
		minDelay:    time.Duration(minDelayS * float64(time.Second)),
		backoffBase: time.Duration(backoffBaseS * float64(time.Second)),
		backoffMax:  time.Duration(backoffMaxS * float64(time.Second)),
		maxRetries:  maxRetries,
		logger:      logger.With().Str("component", "ratelimit").Logger(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MaxRetries returns how many times one tier may retry a retryable failure.
func (l *Limiter) MaxRetries() int { return l.maxRetries }

// Acquire suspends the caller until it may start an outbound call. Each
// caller reserves a start slot spaced by the minimum delay; the reservation
// releases immediately, so an in-flight network call never holds the gate.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.minDelay)
	l.mu.Unlock()

	wait := time.Until(start) + l.jitter()
	if wait <= 0 {
		return nil
	}

	l.logger.Debug().Dur("wait", wait).Msg("Waiting for rate-limit slot")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffDelay computes the wait before retry number attempt (0-based):
// base * 2^attempt, capped at the maximum, plus jitter. A positive
// retryAfter hint from the server overrides the computed delay.
func (l *Limiter) BackoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter + l.jitter()
	}

	delay := l.backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= l.backoffMax {
			delay = l.backoffMax
			break
		}
	}
	if delay > l.backoffMax {
		delay = l.backoffMax
	}
	return delay + l.jitter()
}

// WaitBackoff sleeps for the backoff delay, honoring cancellation. It does
// not touch the minimum-delay gate: the retry still goes through Acquire.
func (l *Limiter) WaitBackoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := l.BackoffDelay(attempt, retryAfter)

	l.logger.Warn().
		Int("attempt", attempt+1).
		Dur("backoff", delay).
		Msg("Backing off after rate limit")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) jitter() time.Duration {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return time.Duration(l.rng.Int63n(int64(jitterMax)))
}

package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/models"
)

// fakeThrottle passes every call through without waiting.
type fakeThrottle struct {
	retries  int
	acquires int
	backoffs int
}

func (f *fakeThrottle) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.acquires++
	return nil
}

func (f *fakeThrottle) WaitBackoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	f.backoffs++
	return ctx.Err()
}

func (f *fakeThrottle) MaxRetries() int { return f.retries }

// fakeService scripts per-tier responses. Each tier pops errors from its
// queue before succeeding with the configured payload.
type fakeService struct {
	structuredErrs []error
	fallbackErrs   []error
	textErrs       []error

	payload *models.TopicsPayload
	text    string

	structuredCalls int
	fallbackCalls   int
	textCalls       int
}

func popErr(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

func (f *fakeService) ExtractStructured(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error) {
	f.structuredCalls++
	if err := popErr(&f.structuredErrs); err != nil {
		return nil, err
	}
	return f.payload, nil
}

func (f *fakeService) ExtractStructuredFallback(ctx context.Context, system, messagesText string, maxTokens int) (*models.TopicsPayload, error) {
	f.fallbackCalls++
	if err := popErr(&f.fallbackErrs); err != nil {
		return nil, err
	}
	return f.payload, nil
}

func (f *fakeService) ExtractText(ctx context.Context, system, messagesText string, maxTokens int) (string, error) {
	f.textCalls++
	if err := popErr(&f.textErrs); err != nil {
		return "", err
	}
	return f.text, nil
}

func testMessages() []models.Message {
	return []models.Message{
		{ChatID: -100555, MessageID: 10, Date: 1000, Text: "first"},
		{ChatID: -100555, MessageID: 20, Date: 2000, Text: "second"},
		{ChatID: -100555, MessageID: 30, Date: 3000, Text: "third"},
	}
}

func validationErr() error {
	return &models.ValidationError{Reason: "bad payload"}
}

func rateLimitErr() error {
	return &models.RateLimitError{Err: errors.New("429")}
}

func TestExtract_PrimaryTierSucceeds(t *testing.T) {
	svc := &fakeService{payload: &models.TopicsPayload{Topics: []models.TopicItem{
		{Topic: "Small", MessageIDs: []int64{30, 20}, MessageCount: 2},
		{Topic: "Big", MessageIDs: []int64{10}, MessageCount: 5},
	}}}
	throttle := &fakeThrottle{retries: 3}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	topics, err := ext.Extract(context.Background(), &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if svc.fallbackCalls != 0 || svc.textCalls != 0 {
		t.Error("lower tiers should not be touched when the primary succeeds")
	}
	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(topics))
	}
	if topics[0].Title != "Big" {
		t.Errorf("topics[0] = %q, want the larger topic first", topics[0].Title)
	}
	// Only the earliest contributing id is retained.
	if got := topics[1].MessageIDs; len(got) != 1 || got[0] != 20 {
		t.Errorf("retained ids = %v, want [20]", got)
	}
}

func TestExtract_ValidationAdvancesTierWithoutRetry(t *testing.T) {
	svc := &fakeService{
		structuredErrs: []error{validationErr()},
		payload: &models.TopicsPayload{Topics: []models.TopicItem{
			{Topic: "Only", MessageIDs: []int64{10}, MessageCount: 3},
		}},
	}
	throttle := &fakeThrottle{retries: 3}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	topics, err := ext.Extract(context.Background(), &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if svc.structuredCalls != 1 {
		t.Errorf("structured calls = %d, want 1 (no retry on validation failure)", svc.structuredCalls)
	}
	if svc.fallbackCalls != 1 {
		t.Errorf("fallback calls = %d, want 1", svc.fallbackCalls)
	}
	if svc.textCalls != 0 {
		t.Error("text tier should not run when the fallback tier succeeds")
	}
	if len(topics) != 1 || topics[0].Title != "Only" {
		t.Errorf("topics = %v", topics)
	}
}

func TestExtract_RateLimitRetriesWithinTier(t *testing.T) {
	svc := &fakeService{
		structuredErrs: []error{rateLimitErr(), rateLimitErr()},
		payload: &models.TopicsPayload{Topics: []models.TopicItem{
			{Topic: "Only", MessageIDs: []int64{10}, MessageCount: 3},
		}},
	}
	throttle := &fakeThrottle{retries: 3}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	_, err := ext.Extract(context.Background(), &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if svc.structuredCalls != 3 {
		t.Errorf("structured calls = %d, want 3 (two rate limits then success)", svc.structuredCalls)
	}
	if throttle.backoffs != 2 {
		t.Errorf("backoffs = %d, want 2", throttle.backoffs)
	}
	if svc.fallbackCalls != 0 {
		t.Error("fallback tier should not run")
	}
}

func TestExtract_RetryBudgetExhaustedAdvancesTier(t *testing.T) {
	svc := &fakeService{
		structuredErrs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()},
		fallbackErrs:   []error{validationErr()},
		textErrs:       []error{&models.TransportError{Status: 400, Err: errors.New("bad request")}},
	}
	throttle := &fakeThrottle{retries: 2}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	_, err := ext.Extract(context.Background(), &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	if svc.structuredCalls != 3 {
		t.Errorf("structured calls = %d, want 3 (initial + 2 retries)", svc.structuredCalls)
	}
	if svc.fallbackCalls != 1 {
		t.Errorf("fallback calls = %d, want 1", svc.fallbackCalls)
	}
	if svc.textCalls != 1 {
		t.Errorf("text calls = %d, want 1 (non-retryable 400 fails the tier)", svc.textCalls)
	}
}

func TestExtract_TextTierParsed(t *testing.T) {
	svc := &fakeService{
		structuredErrs: []error{validationErr()},
		fallbackErrs:   []error{validationErr()},
		text: "- Deployment woes. The rollout broke staging (20, 30)\n" +
			"- Lunch plans (10)\n",
	}
	throttle := &fakeThrottle{retries: 1}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	topics, err := ext.Extract(context.Background(), &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(topics))
	}
	if topics[0].Title != "Deployment woes" {
		t.Errorf("topics[0].Title = %q", topics[0].Title)
	}
	if topics[0].Description != "The rollout broke staging" {
		t.Errorf("topics[0].Description = %q", topics[0].Description)
	}
	if got := topics[0].MessageIDs; len(got) != 1 || got[0] != 20 {
		t.Errorf("retained ids = %v, want [20]", got)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	svc := &fakeService{payload: &models.TopicsPayload{}}
	throttle := &fakeThrottle{retries: 3}
	ext := NewExtractor(svc, throttle, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ext.Extract(ctx, &models.ChatSummaryConfig{ChatID: -100555}, testMessages())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if svc.structuredCalls != 0 {
		t.Error("no tier should run with a cancelled context")
	}
}

func TestParseTextTopics(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
		wantErr bool
	}{
		{"dashes with parens", "- A. Desc (1, 2)\n- B. Desc (3)", 2, false},
		{"bullets with brackets", "• A. Desc [5]\n• B [6]", 2, false},
		{"numbered list", "1. A. Desc (7)\n2) B. Desc (8)", 2, false},
		{"no ids still counts", "- Just a topic line", 1, false},
		{"prose only", "I could not find any topics today.", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics, err := parseTextTopics(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				if !models.IsValidation(err) {
					t.Errorf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTextTopics: %v", err)
			}
			if len(topics) != tt.wantLen {
				t.Errorf("got %d topics, want %d", len(topics), tt.wantLen)
			}
		})
	}
}

func TestRankTopics_TiesBreakByAge(t *testing.T) {
	topics := []models.Topic{
		{Title: "Newer", MessageCount: 4, MessageIDs: []int64{20}},
		{Title: "Older", MessageCount: 4, MessageIDs: []int64{10}},
	}
	timeByID := map[int64]int64{10: 1000, 20: 2000}

	rankTopics(topics, timeByID)
	if topics[0].Title != "Older" {
		t.Errorf("topics[0] = %q, want the older topic on a count tie", topics[0].Title)
	}
}

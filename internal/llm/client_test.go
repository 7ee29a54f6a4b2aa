package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/telegram-summary-bot/internal/models"
)

func TestParseTopicsPayload_Valid(t *testing.T) {
	payload, err := parseTopicsPayload(`{
		"topics": [{
			"topic": "Deploys",
			"topic_description": "Staging is broken",
			"message_ids": [12],
			"message_count": 4,
			"participants": [{"username": "ann", "first_name": "Ann", "second_name": "", "message_count": 4}]
		}]
	}`)
	if err != nil {
		t.Fatalf("parseTopicsPayload: %v", err)
	}
	if len(payload.Topics) != 1 {
		t.Fatalf("got %d topics, want 1", len(payload.Topics))
	}
	topic := payload.Topics[0]
	if topic.Topic != "Deploys" || topic.MessageCount != 4 {
		t.Errorf("topic = %+v", topic)
	}
	if len(topic.Participants) != 1 || topic.Participants[0].Username != "ann" {
		t.Errorf("participants = %+v", topic.Participants)
	}
}

func TestParseTopicsPayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"topics": [`},
		{"prose", "Here are your topics!"},
		{"empty title", `{"topics": [{"topic": "", "message_ids": [1]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTopicsPayload(tt.body)
			if err == nil {
				t.Fatal("want error")
			}
			if !models.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		rateLimit bool
		retryable bool
	}{
		{"api 429", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true, true},
		{"api 500", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, false, true},
		{"api 400", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false, false},
		{"api 401", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false, false},
		{"request 429", &openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests, Err: errors.New("429")}, true, true},
		{"network", errors.New("connection refused"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if models.IsRateLimit(got) != tt.rateLimit {
				t.Errorf("IsRateLimit = %v, want %v", models.IsRateLimit(got), tt.rateLimit)
			}
			if models.IsRetryable(got) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", models.IsRetryable(got), tt.retryable)
			}
		})
	}
}

func TestFormatMessages(t *testing.T) {
	text := FormatMessages([]models.Message{
		{MessageID: 10, UserID: 7, Username: "ann", FirstName: "Ann", LastName: "Lee", Text: "hello"},
		{MessageID: 11, Text: "orphan"},
		{MessageID: 12, ForwardID: 10, FirstName: "Bob", Text: "reply"},
	})

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id:[10] author: Ann Lee @ann id=7") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[0], "text: hello") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if strings.Contains(lines[1], "author:") {
		t.Errorf("line 1 should have no author segment: %q", lines[1])
	}
	if !strings.Contains(lines[2], "ref_id: 10") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

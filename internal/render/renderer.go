package render

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/telegram-summary-bot/internal/models"
)

// telegramMessageLimit is the hard size cap of one Telegram message.
const telegramMessageLimit = 4096

// defaultTemplate renders a summary in Telegram Markdown.
const defaultTemplate = `*{{.Header}}*

{{range .Topics}}{{.Index}}. {{if .Link}}[{{.Title}}]({{.Link}}){{else}}*{{.Title}}*{{end}}{{if .Description}}: {{.Description}}{{end}} ({{.MessageCount}} messages)
{{if .Participants}}   {{.Participants}}
{{end}}{{end}}{{if .Omitted}}
...and {{.Omitted}} more topics
{{end}}
_{{.Footer}}_`

type topicView struct {
	Index        int
	Title        string
	Description  string
	Link         string
	MessageCount int
	Participants string
}

type summaryView struct {
	Header  string
	Footer  string
	Topics  []topicView
	Omitted int
}

// Renderer turns an assembled summary into the outgoing message text. A chat
// may override the built-in template with its own file.
type Renderer struct {
	logger zerolog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(logger zerolog.Logger) *Renderer {
	return &Renderer{logger: logger.With().Str("component", "render").Logger()}
}

// Render produces the message text, trimmed to fit the chat's output size
// cap. When the full summary does not fit, trailing topics are dropped and
// counted in an omission note.
func (r *Renderer) Render(cfg *models.ChatSummaryConfig, result *models.SummaryResult) (string, error) {
	tmpl, err := r.template(cfg)
	if err != nil {
		return "", err
	}

	limit := cfg.MaxOutputSize
	if limit <= 0 || limit > telegramMessageLimit {
		limit = telegramMessageLimit
	}

	views := topicViews(cfg, result.Topics)
	for keep := len(views); keep >= 0; keep-- {
		text, err := execute(tmpl, summaryView{
			Header:  result.Header,
			Footer:  result.Footer,
			Topics:  views[:keep],
			Omitted: len(views) - keep,
		})
		if err != nil {
			return "", err
		}
		if len(text) <= limit {
			if keep < len(views) {
				r.logger.Debug().
					Int64("chat_id", result.ChatID).
					Int("dropped", len(views)-keep).
					Msg("Summary trimmed to fit message limit")
			}
			return text, nil
		}
	}

	// Even the empty skeleton overflows; cut hard.
	text, err := execute(tmpl, summaryView{Header: result.Header, Footer: result.Footer})
	if err != nil {
		return "", err
	}
	if len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}

func (r *Renderer) template(cfg *models.ChatSummaryConfig) (*template.Template, error) {
	text := defaultTemplate
	if cfg.TemplatePath != "" {
		data, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, &models.ConfigError{Field: "template", Value: cfg.TemplatePath, Err: err}
		}
		text = string(data)
	}

	tmpl, err := template.New("summary").Parse(text)
	if err != nil {
		return nil, &models.ConfigError{Field: "template", Value: cfg.TemplatePath, Err: err}
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, view summaryView) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, view); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func topicViews(cfg *models.ChatSummaryConfig, topics []models.Topic) []topicView {
	views := make([]topicView, 0, len(topics))
	for i, topic := range topics {
		views = append(views, topicView{
			Index:        i + 1,
			Title:        topic.Title,
			Description:  topic.Description,
			Link:         topic.Link,
			MessageCount: topic.MessageCount,
			Participants: formatParticipants(cfg, topic.Participants),
		})
	}
	return views
}

func formatParticipants(cfg *models.ChatSummaryConfig, participants []models.Participant) string {
	if !cfg.ShowParticipants || len(participants) == 0 {
		return ""
	}

	parts := make([]string, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		name := p.DisplayName()
		if name == "" {
			continue
		}
		if cfg.ShowParticipantLinks && p.Handle() != "" {
			name = fmt.Sprintf("[%s](https://t.me/%s)", name, p.Handle())
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", name, p.MessageCount))
	}
	return strings.Join(parts, ", ")
}

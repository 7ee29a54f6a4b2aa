package llm

import (
	"context"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// transcriptionModel is the speech-to-text model used for voice messages.
const transcriptionModel = "whisper-1"

// Transcribe converts a voice recording into text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    transcriptionModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", classifyError(err)
	}

	c.logger.Debug().
		Str("file", filename).
		Dur("elapsed", time.Since(start)).
		Msg("Voice message transcribed")

	return resp.Text, nil
}

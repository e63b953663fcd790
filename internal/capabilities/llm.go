package capabilities

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

var errNoChoices = errors.New("model returned no choices")

// complete sends a system and user prompt and returns the trimmed reply.
func complete(ctx context.Context, model llms.Model, system, prompt string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := model.GenerateContent(ctx, msgs, llms.WithTemperature(0.3))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

package analyze

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/wda-labs/newswatch/internal/resilience"
	"github.com/wda-labs/newswatch/pkg/groq"
)

// GroqProvider generates analyses with a Groq-hosted model.
type GroqProvider struct {
	client groq.Client
	model  string
}

// NewGroqProvider wraps a Groq client for analysis prompts.
func NewGroqProvider(client groq.Client, model string) *GroqProvider {
	return &GroqProvider{client: client, model: model}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:    p.model,
		Messages: []groq.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		var statusErr *groq.StatusError
		if errors.As(err, &statusErr) {
			if classified := resilience.StatusError(statusErr.StatusCode, err); classified != nil {
				return "", classified
			}
		}
		return "", eris.Wrap(err, "groq: generate")
	}

	if len(resp.Choices) == 0 {
		return "", &resilience.MalformedError{Err: eris.New("groq: no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

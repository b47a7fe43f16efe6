package analyze

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wda-labs/newswatch/internal/resilience"
	"github.com/wda-labs/newswatch/pkg/anthropic"
)

// AnthropicProvider generates analyses with the Anthropic API. It serves
// as the secondary provider when no Gemini key is configured.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider wraps an Anthropic client for analysis prompts.
func NewAnthropicProvider(client anthropic.Client, model string) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: model}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// analysisSystem is the fixed preamble sent as a cached system block, so
// sequential requests within a run hit the prompt cache.
const analysisSystem = "당신은 한국의 웰다잉(well-dying) 분야 뉴스를 분석하는 애널리스트입니다. 항상 요청된 JSON 형식으로만 답하세요."

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(analysisSystem),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if resilience.IsQuota(err) {
			return "", &resilience.QuotaError{Err: err}
		}
		if resilience.IsTransient(err) {
			return "", &resilience.TransientError{Err: err}
		}
		return "", eris.Wrap(err, "anthropic: generate")
	}

	resp.Usage.LogCost(p.model, "analyze")

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &resilience.MalformedError{Err: eris.New("anthropic: empty content")}
	}
	return b.String(), nil
}

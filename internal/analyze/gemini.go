package analyze

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wda-labs/newswatch/internal/resilience"
)

// GeminiProvider generates analyses with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider connects to Gemini. Close the provider when done.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiProvider{client: client, model: modelName}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying gRPC connection.
func (p *GeminiProvider) Close() error { return p.client.Close() }

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	gm := p.client.GenerativeModel(p.model)

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &resilience.MalformedError{Err: eris.New("gemini: empty candidates")}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", &resilience.MalformedError{Err: eris.New("gemini: no text parts")}
	}
	return b.String(), nil
}

// classifyGeminiError maps API failures onto the retry taxonomy.
func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if classified := resilience.StatusError(apiErr.Code, err); classified != nil {
			return classified
		}
	}
	if resilience.IsQuota(err) {
		return &resilience.QuotaError{Err: err}
	}
	if resilience.IsTransient(err) {
		return &resilience.TransientError{Err: err}
	}
	return eris.Wrap(err, "gemini: generate content")
}

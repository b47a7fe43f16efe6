// Package analyze runs articles through AI providers with quota-aware
// retries, a circuit breaker, and a degraded fallback path.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
)

// Provider generates a raw completion for an analysis prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt renders the analysis prompt for one article.
func BuildPrompt(a model.Article) string {
	return fmt.Sprintf(`다음 웰다잉 관련 뉴스 기사를 분석해 JSON으로만 응답하세요.

제목: %s
출처: %s
내용: %s

JSON 형식:
{
  "title_ko": "한국어로 번역한 제목",
  "summary": "- 요점 1\n- 요점 2\n- 요점 3",
  "category": "%s",
  "sentiment": "긍정 | 부정 | 중립"
}

category는 나열된 값 중 하나만 사용하세요. 다른 텍스트 없이 JSON만 출력하세요.`,
		a.Title, a.Source, a.Summary, strings.Join(model.Categories(), " | "))
}

// rawAnalysis mirrors the JSON shape providers are asked to return.
type rawAnalysis struct {
	TitleKo   string `json:"title_ko"`
	Summary   string `json:"summary"`
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
}

// ParseAnalysis validates a provider completion. A response missing any
// required key comes back as a MalformedError so the caller can retry it.
func ParseAnalysis(text string, now time.Time) (*model.Analysis, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, &resilience.MalformedError{Err: fmt.Errorf("no JSON object in response")}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, &resilience.MalformedError{Err: err}
	}

	var missing []string
	if strings.TrimSpace(raw.TitleKo) == "" {
		missing = append(missing, "title_ko")
	}
	if strings.TrimSpace(raw.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(raw.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(raw.Sentiment) == "" {
		missing = append(missing, "sentiment")
	}
	if len(missing) > 0 {
		return nil, &resilience.MalformedError{Missing: missing}
	}

	analysis := &model.Analysis{
		TitleKo:    strings.TrimSpace(raw.TitleKo),
		Summary:    strings.TrimSpace(raw.Summary),
		Category:   strings.TrimSpace(raw.Category),
		Sentiment:  model.Sentiment(strings.TrimSpace(raw.Sentiment)),
		AnalyzedAt: now.UTC(),
	}

	// Out-of-set values are clamped rather than rejected.
	if !model.KnownCategory(analysis.Category) {
		analysis.Category = model.CategoryOther
	}
	if !model.KnownSentiment(analysis.Sentiment) {
		analysis.Sentiment = model.SentimentNeutral
	}
	return analysis, nil
}

// extractJSON pulls the outermost JSON object out of a completion that may
// carry code fences or prose around it.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

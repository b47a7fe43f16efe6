// Package market assesses the Korean market impact of analyzed articles
// through a two-stage Groq funnel with a rule-based fallback.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/pkg/groq"
)

// Config tunes the market analyzer.
type Config struct {
	FastModel string // cheap relevance filter
	DeepModel string // full impact analysis
	RPM       int    // requests per minute across both stages
}

// Analyzer runs the relevance filter and the batched impact analysis.
type Analyzer struct {
	client  groq.Client
	cfg     Config
	limiter *rate.Limiter
	nowFunc func() time.Time
}

// NewAnalyzer builds a market analyzer over a Groq client.
func NewAnalyzer(client groq.Client, cfg Config) *Analyzer {
	if cfg.FastModel == "" {
		cfg.FastModel = "llama-3.1-8b-instant"
	}
	if cfg.DeepModel == "" {
		cfg.DeepModel = "llama-3.3-70b-versatile"
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 30
	}
	return &Analyzer{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1),
		nowFunc: time.Now,
	}
}

// AssessBatch returns a market impact per article ID. Every input article
// gets a result: provider failures and skipped IDs degrade to the
// rule-based assessment, irrelevant articles get ImpactNone.
func (a *Analyzer) AssessBatch(ctx context.Context, articles []model.Article) (map[string]model.MarketImpact, error) {
	out := make(map[string]model.MarketImpact, len(articles))
	if len(articles) == 0 {
		return out, nil
	}

	relevant := a.filterRelevant(ctx, articles)

	var deepResults map[string]model.MarketImpact
	if len(relevant) > 0 {
		var err error
		deepResults, err = a.analyzeDeep(ctx, relevant)
		if err != nil {
			zap.L().Warn("deep market analysis failed, using rules", zap.Error(err))
			deepResults = nil
		}
	}

	now := a.nowFunc().UTC()
	relevantSet := make(map[string]struct{}, len(relevant))
	for _, r := range relevant {
		relevantSet[r.ID] = struct{}{}
	}

	for _, article := range articles {
		if _, ok := relevantSet[article.ID]; !ok {
			out[article.ID] = model.MarketImpact{
				Impact:     model.ImpactNone,
				Reason:     "시장 관련성 없음",
				AssessedAt: now,
			}
			continue
		}
		if impact, ok := deepResults[article.ID]; ok {
			impact.AssessedAt = now
			out[article.ID] = impact
			continue
		}
		impact := RuleBasedImpact(article)
		impact.AssessedAt = now
		out[article.ID] = impact
	}
	return out, nil
}

// filterRelevant asks the fast model a yes/no question per article. On any
// error the article is treated as relevant so the deep stage can decide.
func (a *Analyzer) filterRelevant(ctx context.Context, articles []model.Article) []model.Article {
	var relevant []model.Article
	for _, article := range articles {
		if err := a.limiter.Wait(ctx); err != nil {
			return relevant
		}

		resp, err := a.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
			Model: a.cfg.FastModel,
			Messages: []groq.Message{{
				Role: "user",
				Content: fmt.Sprintf(
					"다음 뉴스가 한국 증시(보험, 제약/바이오, 의료기기, 상조, 헬스케어IT 업종)에 영향을 줄 수 있으면 YES, 아니면 NO만 답하세요.\n\n제목: %s\n내용: %s",
					displayTitle(article), article.Summary),
			}},
		})
		if err != nil {
			zap.L().Debug("relevance filter failed, keeping article",
				zap.String("id", article.ID),
				zap.Error(err),
			)
			relevant = append(relevant, article)
			continue
		}

		if len(resp.Choices) > 0 &&
			strings.Contains(strings.ToUpper(resp.Choices[0].Message.Content), "YES") {
			relevant = append(relevant, article)
		}
	}
	return relevant
}

// analyzeDeep sends one batched prompt with ID-tagged articles and parses
// the keyed response. IDs the model skipped are simply absent from the map.
func (a *Analyzer) analyzeDeep(ctx context.Context, articles []model.Article) (map[string]model.MarketImpact, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "market: rate limiter")
	}

	prompt, ids := buildBatchPrompt(articles)
	resp, err := a.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:    a.cfg.DeepModel,
		Messages: []groq.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "market: deep analysis")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("market: empty completion")
	}

	return parseBatchResponse(resp.Choices[0].Message.Content, ids)
}

// buildBatchPrompt labels each article news_0..news_{n-1} and asks for a
// JSON object keyed by those labels. Returns the label->article-ID map.
func buildBatchPrompt(articles []model.Article) (string, map[string]string) {
	ids := make(map[string]string, len(articles))
	var b strings.Builder

	b.WriteString("다음 뉴스들의 한국 증시 영향을 평가해 JSON으로만 응답하세요.\n\n")
	for i, article := range articles {
		label := fmt.Sprintf("news_%d", i)
		ids[label] = article.ID
		fmt.Fprintf(&b, "[%s]\n제목: %s\n내용: %s\n\n", label, displayTitle(article), article.Summary)
	}
	b.WriteString(`응답 형식 (각 뉴스 ID를 키로):
{
  "news_0": {
    "impact": "높음 | 중간 | 낮음 | 없음",
    "sectors": ["보험", "제약/바이오", "의료기기", "상조", "헬스케어IT"],
    "reason": "한 문장 근거"
  }
}
모든 뉴스 ID에 대해 응답하고, 다른 텍스트 없이 JSON만 출력하세요.`)

	return b.String(), ids
}

// batchEntry is one keyed result in the deep model's response.
type batchEntry struct {
	Impact  string   `json:"impact"`
	Sectors []string `json:"sectors"`
	Reason  string   `json:"reason"`
}

func parseBatchResponse(text string, ids map[string]string) (map[string]model.MarketImpact, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("market: no JSON object in response")
	}

	var entries map[string]batchEntry
	if err := json.Unmarshal([]byte(text[start:end+1]), &entries); err != nil {
		return nil, eris.Wrap(err, "market: parse batch response")
	}

	out := make(map[string]model.MarketImpact, len(entries))
	for label, entry := range entries {
		articleID, ok := ids[label]
		if !ok {
			continue
		}

		impact := model.ImpactLevel(strings.TrimSpace(entry.Impact))
		switch impact {
		case model.ImpactHigh, model.ImpactMedium, model.ImpactLow, model.ImpactNone:
		default:
			impact = model.ImpactNone
		}

		var sectors []string
		for _, s := range entry.Sectors {
			if _, known := sectorTickers[s]; known {
				sectors = append(sectors, s)
			}
		}

		out[articleID] = model.MarketImpact{
			Impact:  impact,
			Sectors: sectors,
			Tickers: TickersFor(sectors),
			Reason:  strings.TrimSpace(entry.Reason),
		}
	}
	return out, nil
}

// displayTitle prefers the Korean title when an analysis exists.
func displayTitle(a model.Article) string {
	if a.Analysis != nil && a.Analysis.TitleKo != "" {
		return a.Analysis.TitleKo
	}
	return a.Title
}

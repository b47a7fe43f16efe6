// Package report builds the markdown digest and splits it for delivery.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/model"
)

// Store is the subset of the article store the reporter needs.
type Store interface {
	ProcessedSince(ctx context.Context, since time.Time) ([]model.Article, error)
}

// Digest is a rendered report over a time window.
type Digest struct {
	Date         string `json:"date"`
	Hours        int    `json:"hours"`
	ArticleCount int    `json:"article_count"`
	Fallback     int    `json:"fallback"`
	Content      string `json:"content"`
}

// Builder renders digests from stored analyses.
type Builder struct {
	store   Store
	nowFunc func() time.Time
}

// NewBuilder creates a digest builder.
func NewBuilder(st Store) *Builder {
	return &Builder{store: st, nowFunc: time.Now}
}

// Build renders the digest for the last N hours. An empty window still
// produces a digest saying so.
func (b *Builder) Build(ctx context.Context, hours int) (*Digest, error) {
	if hours <= 0 {
		hours = 24
	}
	now := b.nowFunc().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	articles, err := b.store.ProcessedSince(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "report: load processed articles")
	}

	digest := &Digest{
		Date:         now.Format("2006-01-02"),
		Hours:        hours,
		ArticleCount: len(articles),
	}
	for _, a := range articles {
		if a.Analysis != nil && a.Analysis.IsFallback {
			digest.Fallback++
		}
	}
	digest.Content = render(articles, now, hours, digest.Fallback)

	zap.L().Info("digest built",
		zap.Int("articles", digest.ArticleCount),
		zap.Int("fallback", digest.Fallback),
		zap.Int("hours", hours),
	)
	return digest, nil
}

func render(articles []model.Article, now time.Time, hours, fallback int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📰 *웰다잉 뉴스 다이제스트* (%s)\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "최근 %d시간, 기사 %d건\n\n", hours, len(articles))

	if len(articles) == 0 {
		b.WriteString("수집된 기사가 없습니다.\n")
		return b.String()
	}

	// Sentiment tally.
	tally := map[model.Sentiment]int{}
	for _, a := range articles {
		if a.Analysis != nil {
			tally[a.Analysis.Sentiment]++
		}
	}
	fmt.Fprintf(&b, "분위기: 긍정 %d · 부정 %d · 중립 %d\n\n",
		tally[model.SentimentPositive], tally[model.SentimentNegative], tally[model.SentimentNeutral])

	byCategory := make(map[string][]model.Article)
	for _, a := range articles {
		cat := model.CategoryOther
		if a.Analysis != nil && a.Analysis.Category != "" {
			cat = a.Analysis.Category
		}
		byCategory[cat] = append(byCategory[cat], a)
	}

	for _, cat := range model.Categories() {
		items := byCategory[cat]
		if len(items) == 0 {
			continue
		}
		sort.SliceStable(items, func(i, j int) bool {
			return qualityOf(items[i]) > qualityOf(items[j])
		})

		fmt.Fprintf(&b, "## %s (%d)\n\n", cat, len(items))
		for _, a := range items {
			title := a.Title
			if a.Analysis != nil && a.Analysis.TitleKo != "" {
				title = a.Analysis.TitleKo
			}
			fmt.Fprintf(&b, "*%s*", title)
			if a.Analysis != nil && a.Analysis.IsFallback {
				b.WriteString(" ⚠")
			}
			b.WriteString("\n")
			if a.Analysis != nil && a.Analysis.Summary != "" {
				b.WriteString(a.Analysis.Summary)
				b.WriteString("\n")
			}
			if a.Market != nil && a.Market.Impact != model.ImpactNone {
				fmt.Fprintf(&b, "증시 영향: %s (%s)\n", a.Market.Impact, strings.Join(a.Market.Sectors, ", "))
			}
			fmt.Fprintf(&b, "%s · %s\n\n", a.Source, a.Link)
		}
	}

	if fallback > 0 {
		fmt.Fprintf(&b, "⚠ %d건은 번역만 제공되었습니다 (분석 할당량 초과)\n", fallback)
	}
	return b.String()
}

func qualityOf(a model.Article) int {
	if a.Analysis == nil {
		return 0
	}
	return a.Analysis.QualityScore
}

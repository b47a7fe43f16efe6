package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func article(id, link string) model.Article {
	return model.Article{
		ID:          id,
		Title:       "title " + id,
		Link:        link,
		Source:      "Example News",
		Summary:     "summary",
		ContentHash: "hash-" + id,
		PublishedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteSaveArticlesIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveArticles(ctx, []model.Article{
		article("a", "https://example.com/a"),
		article("b", "https://example.com/b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// Same links again, nothing new inserted.
	saved, err = s.SaveArticles(ctx, []model.Article{
		article("a2", "https://example.com/a"),
		article("c", "https://example.com/c"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	links, err := s.RecentLinks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, links, 3)
	assert.Contains(t, links, "https://example.com/a")
}

func TestSQLiteSaveArticlesAssignsIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveArticles(ctx, []model.Article{article("", "https://example.com/x")})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	got, err := s.Unprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestSQLiteSaveArticlesManyChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []model.Article
	for i := 0; i < 120; i++ {
		batch = append(batch, article("", fmt.Sprintf("https://example.com/%03d", i)))
	}
	saved, err := s.SaveArticles(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 120, saved)
}

func TestSQLiteRecentLinksLookback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveArticles(ctx, []model.Article{article("a", "https://example.com/a")})
	require.NoError(t, err)

	// Age the row beyond the lookback window.
	_, err = s.db.ExecContext(ctx,
		`UPDATE articles SET created_at = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, 0, -5), "a")
	require.NoError(t, err)

	links, err := s.RecentLinks(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, links)

	links, err = s.RecentLinks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestSQLiteUpdateAnalysisSetsProcessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveArticles(ctx, []model.Article{article("a", "https://example.com/a")})
	require.NoError(t, err)

	unprocessed, err := s.Unprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)

	err = s.UpdateAnalysis(ctx, "a", model.Analysis{
		TitleKo:      "한국어 제목",
		Summary:      "- 요점",
		Category:     model.CategoryMedical,
		Sentiment:    model.SentimentNeutral,
		QualityScore: 85,
		AnalyzedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	unprocessed, err = s.Unprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	since := time.Now().UTC().Add(-time.Hour)
	processed, err := s.ProcessedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.NotNil(t, processed[0].Analysis)
	assert.Equal(t, "한국어 제목", processed[0].Analysis.TitleKo)
	assert.Equal(t, 85, processed[0].Analysis.QualityScore)
	assert.True(t, processed[0].Processed)
}

func TestSQLiteUpdateAnalysisUnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateAnalysis(context.Background(), "nope", model.Analysis{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteUpdateMarket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveArticles(ctx, []model.Article{article("a", "https://example.com/a")})
	require.NoError(t, err)
	require.NoError(t, s.UpdateAnalysis(ctx, "a", model.Analysis{Category: model.CategoryOther}))

	err = s.UpdateMarket(ctx, "a", model.MarketImpact{
		Impact:  model.ImpactMedium,
		Sectors: []string{"보험"},
		Tickers: []string{"삼성생명"},
		Reason:  "보험 약관 개정",
	})
	require.NoError(t, err)

	processed, err := s.ProcessedSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.NotNil(t, processed[0].Market)
	assert.Equal(t, model.ImpactMedium, processed[0].Market.Impact)
	assert.Equal(t, []string{"삼성생명"}, processed[0].Market.Tickers)
}

func TestSQLiteStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveArticles(ctx, []model.Article{
		article("a", "https://example.com/a"),
		article("b", "https://example.com/b"),
		article("c", "https://example.com/c"),
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateAnalysis(ctx, "a", model.Analysis{
		Category: model.CategoryMedical, Sentiment: model.SentimentPositive, QualityScore: 80,
	}))
	require.NoError(t, s.UpdateAnalysis(ctx, "b", model.Analysis{
		Category: model.CategoryMedical, Sentiment: model.SentimentNeutral, QualityScore: 60, IsFallback: true,
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Unprocessed)
	assert.Equal(t, 1, stats.Fallback)
	assert.Equal(t, 3, stats.Today)
	assert.Equal(t, 2, stats.ByCategory[model.CategoryMedical])
	assert.Equal(t, 1, stats.BySentiment[string(model.SentimentPositive)])
	assert.InDelta(t, 70.0, stats.AvgQuality, 0.001)
}

func TestSQLiteSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Setting(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, "k", "v1"))
	require.NoError(t, s.SetSetting(ctx, "k", "v2"))

	v, err = s.Setting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestSQLiteLastRunAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at, err := s.LastRunAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	want := time.Date(2025, 3, 1, 6, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetLastRunAt(ctx, want))

	at, err = s.LastRunAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, at)
}

func TestSQLiteSaveReportUpsertsByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveReport(ctx, model.Report{
		Date: "2025-03-01", ArticleCount: 3, Content: "first",
	}))
	require.NoError(t, s.SaveReport(ctx, model.Report{
		Date: "2025-03-01", ArticleCount: 5, Content: "second",
	}))

	var count int
	var content string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT article_count, content FROM reports WHERE date = ?`, "2025-03-01",
	).Scan(&count, &content))
	assert.Equal(t, 5, count)
	assert.Equal(t, "second", content)
}

func TestSQLiteFailureLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.FailureCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.LogFailure(ctx, resilience.FailedArticle{
		ArticleID: "a",
		Link:      "https://example.com/a",
		Title:     "title a",
		Stage:     "analyze",
		Error:     "quota exceeded",
		ErrorType: "quota",
	}))

	count, err = s.FailureCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteBanWords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	words, err := s.BanWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)

	_, err = s.db.ExecContext(ctx, `INSERT INTO ban_words (word) VALUES (?), (?)`, "광고", "홍보")
	require.NoError(t, err)

	words, err = s.BanWords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"광고", "홍보"}, words)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

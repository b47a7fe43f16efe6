// Package store persists articles, reports, and run metadata behind a
// backend-neutral interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
)

// saveChunkSize bounds multi-row INSERT statements so a single bad row
// poisons at most one chunk before the per-row fallback kicks in.
const saveChunkSize = 50

// settingLastRun is the settings key holding the last pipeline run time.
const settingLastRun = "last_run_at"

// Store defines the persistence interface for the news pipeline.
type Store interface {
	// Articles
	SaveArticles(ctx context.Context, articles []model.Article) (int, error)
	RecentLinks(ctx context.Context, days int) (map[string]struct{}, error)
	Unprocessed(ctx context.Context, limit int) ([]model.Article, error)
	UpdateAnalysis(ctx context.Context, id string, analysis model.Analysis) error
	UpdateMarket(ctx context.Context, id string, market model.MarketImpact) error
	ProcessedSince(ctx context.Context, since time.Time) ([]model.Article, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Filtering
	BanWords(ctx context.Context) ([]string, error)

	// Settings
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	LastRunAt(ctx context.Context) (time.Time, error)
	SetLastRunAt(ctx context.Context, t time.Time) error

	// Reports
	SaveReport(ctx context.Context, report model.Report) error

	// Failure log
	LogFailure(ctx context.Context, failure resilience.FailedArticle) error
	FailureCount(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver. "sqlite" takes a file
// path, "postgres" a connection string.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func newID() string {
	return uuid.New().String()
}

// prepareArticles fills in missing IDs and creation times in place.
func prepareArticles(articles []model.Article) []model.Article {
	now := time.Now().UTC()
	for i := range articles {
		if articles[i].ID == "" {
			articles[i].ID = newID()
		}
		if articles[i].CreatedAt.IsZero() {
			articles[i].CreatedAt = now
		}
	}
	return articles
}

// tallyAnalyses folds per-article analysis rows into aggregate stats.
func tallyAnalyses(stats *model.Stats, analyses []model.Analysis) {
	var qualitySum int
	for _, a := range analyses {
		stats.ByCategory[a.Category]++
		stats.BySentiment[string(a.Sentiment)]++
		if a.IsFallback {
			stats.Fallback++
		}
		qualitySum += a.QualityScore
	}
	if len(analyses) > 0 {
		stats.AvgQuality = float64(qualitySum) / float64(len(analyses))
	}
}

// Package pipeline orchestrates the analysis stages over stored articles.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/quality"
	"github.com/wda-labs/newswatch/internal/resilience"
)

// Analyzer produces an analysis for a single article.
type Analyzer interface {
	Analyze(ctx context.Context, article model.Article) (*model.Analysis, error)
}

// Store is the subset of the article store the batch runner needs.
type Store interface {
	Unprocessed(ctx context.Context, limit int) ([]model.Article, error)
	UpdateAnalysis(ctx context.Context, id string, analysis model.Analysis) error
	LogFailure(ctx context.Context, entry resilience.FailedArticle) error
}

// BatchResult tallies one analysis batch.
type BatchResult struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	FellBack  int `json:"fell_back"`
}

// Batch runs analyses sequentially with pacing between provider calls so
// a single run stays inside free-tier rate limits.
type Batch struct {
	analyzer Analyzer
	store    Store
	pacing   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatch builds a batch runner. Pacing below zero disables the delay.
func NewBatch(analyzer Analyzer, st Store, pacing time.Duration) *Batch {
	return &Batch{
		analyzer: analyzer,
		store:    st,
		pacing:   pacing,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Run analyzes up to batchSize unprocessed articles. A failing article is
// logged and counted, never aborts the batch. Only context cancellation
// and store-read errors end the run early.
func (b *Batch) Run(ctx context.Context, batchSize int) (*BatchResult, error) {
	articles, err := b.store.Unprocessed(ctx, batchSize)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load unprocessed articles")
	}

	result := &BatchResult{Requested: len(articles)}
	if len(articles) == 0 {
		zap.L().Info("no unprocessed articles")
		return result, nil
	}

	for i, article := range articles {
		if ctx.Err() != nil {
			return result, eris.Wrap(ctx.Err(), "pipeline: batch canceled")
		}

		analysis, err := b.analyzer.Analyze(ctx, article)
		if err != nil {
			result.Failed++
			zap.L().Error("article analysis failed",
				zap.String("id", article.ID),
				zap.String("link", article.Link),
				zap.Error(err),
			)
			if logErr := b.store.LogFailure(ctx, resilience.FailedArticle{
				ArticleID: article.ID,
				Link:      article.Link,
				Title:     article.Title,
				Stage:     "analyze",
				Error:     err.Error(),
				ErrorType: resilience.Classify(err),
				FailedAt:  time.Now().UTC(),
			}); logErr != nil {
				zap.L().Warn("failure log write failed", zap.Error(logErr))
			}
		} else {
			analysis.QualityScore = quality.Score(*analysis)
			if err := b.store.UpdateAnalysis(ctx, article.ID, *analysis); err != nil {
				result.Failed++
				zap.L().Error("analysis save failed",
					zap.String("id", article.ID),
					zap.Error(err),
				)
			} else {
				result.Succeeded++
				if analysis.IsFallback {
					result.FellBack++
				}
				zap.L().Info("article analyzed",
					zap.String("id", article.ID),
					zap.String("category", analysis.Category),
					zap.Int("quality", analysis.QualityScore),
					zap.Bool("fallback", analysis.IsFallback),
				)
			}
		}

		// Pace between provider calls, not after the last one.
		if b.pacing > 0 && i < len(articles)-1 {
			if err := b.sleep(ctx, b.pacing); err != nil {
				return result, eris.Wrap(err, "pipeline: batch canceled")
			}
		}
	}

	zap.L().Info("analysis batch complete",
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("fell_back", result.FellBack),
	)
	return result, nil
}

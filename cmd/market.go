package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/market"
	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/store"
	"github.com/wda-labs/newswatch/pkg/groq"
)

var marketBatchSize int

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Assess Korea market impact for analyzed articles",
	Long:  "Runs the two-stage Groq funnel over recently analyzed articles that have no market assessment yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := checkFlag("batch-size", marketBatchSize, 100); err != nil {
			return err
		}
		if err := cfg.Validate("market"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		batchSize := marketBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Market.BatchSize
		}
		return runMarket(ctx, st, batchSize)
	},
}

func runMarket(ctx context.Context, st store.Store, batchSize int) error {
	if cfg.Groq.Key == "" {
		zap.L().Info("skipping market stage, no groq key configured")
		return nil
	}

	candidates, err := marketCandidates(ctx, st, batchSize)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		zap.L().Info("no articles pending market assessment")
		return nil
	}

	client := groq.NewClient(cfg.Groq.Key, groq.WithBaseURL(cfg.Groq.BaseURL))
	analyzer := market.NewAnalyzer(client, market.Config{
		FastModel: cfg.Groq.FastModel,
		DeepModel: cfg.Groq.DeepModel,
		RPM:       cfg.Groq.RPM,
	})

	impacts, err := analyzer.AssessBatch(ctx, candidates)
	if err != nil {
		return err
	}

	var saved int
	for _, article := range candidates {
		impact, ok := impacts[article.ID]
		if !ok {
			continue
		}
		if err := st.UpdateMarket(ctx, article.ID, impact); err != nil {
			zap.L().Warn("save market impact failed",
				zap.String("article_id", article.ID),
				zap.Error(err),
			)
			continue
		}
		saved++
	}

	zap.L().Info("market stage finished",
		zap.Int("assessed", len(impacts)),
		zap.Int("saved", saved),
	)
	return nil
}

// marketCandidates returns recently processed articles that have no
// market assessment yet, oldest first, capped at limit.
func marketCandidates(ctx context.Context, st store.Store, limit int) ([]model.Article, error) {
	since := time.Now().UTC().Add(-time.Duration(cfg.Report.Hours) * time.Hour)
	articles, err := st.ProcessedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	var out []model.Article
	for _, a := range articles {
		if a.Market != nil {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func init() {
	marketCmd.Flags().IntVar(&marketBatchSize, "batch-size", 0, "articles per run (default from config)")
	rootCmd.AddCommand(marketCmd)
}

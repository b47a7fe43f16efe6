package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/pipeline"
	"github.com/wda-labs/newswatch/internal/store"
)

var analyzeBatchSize int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze unprocessed articles with AI",
	Long:  "Runs the configured AI provider over unprocessed articles, with quota backoff, a circuit breaker, and translation-only fallback.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := checkFlag("batch-size", analyzeBatchSize, 100); err != nil {
			return err
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		batchSize := analyzeBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Analyze.BatchSize
		}

		result, err := runAnalyze(ctx, st, batchSize)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func runAnalyze(ctx context.Context, st store.Store, batchSize int) (*pipeline.BatchResult, error) {
	analyzer, closer, err := newAnalyzer(ctx)
	if err != nil {
		return nil, err
	}
	defer closer()

	pacing := time.Duration(cfg.Analyze.PacingSecs) * time.Second
	batch := pipeline.NewBatch(analyzer, st, pacing)

	result, err := batch.Run(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	zap.L().Info("analysis finished",
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("fell_back", result.FellBack),
	)
	return result, nil
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeBatchSize, "batch-size", 0, "articles per run (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

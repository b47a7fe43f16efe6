package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/collect"
	"github.com/wda-labs/newswatch/internal/store"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch new articles from all sources",
	Long:  "Fetches every configured Google News keyword and RSS feed, filters out duplicates and banned content, and stores what survives.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("collect"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := runCollect(ctx, st)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func runCollect(ctx context.Context, st store.Store) (*collect.Result, error) {
	sources, err := buildSources()
	if err != nil {
		return nil, err
	}

	collector := collect.NewCollector(sources, st, collect.Options{
		LookbackDays: cfg.Collect.LookbackDays,
		MaxParallel:  cfg.Collect.MaxParallel,
		BanWords:     cfg.Collect.BanWords,
	})

	result, err := collector.Run(ctx)
	if err != nil {
		return nil, err
	}

	zap.L().Info("collection finished",
		zap.Int("sources", result.Sources),
		zap.Int("sources_failed", result.SourcesFailed),
		zap.Int("saved", result.Saved),
	)
	return result, nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

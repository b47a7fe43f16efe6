package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/notify"
	"github.com/wda-labs/newswatch/internal/report"
	"github.com/wda-labs/newswatch/internal/store"
)

var reportHours int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build and deliver the digest",
	Long:  "Renders the digest over the configured window, sends it to Telegram and Slack when configured, and persists it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := checkFlag("hours", reportHours, 0); err != nil {
			return err
		}
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		hours := reportHours
		if hours <= 0 {
			hours = cfg.Report.Hours
		}
		return runReport(ctx, st, hours)
	},
}

func runReport(ctx context.Context, st store.Store, hours int) error {
	digest, err := report.NewBuilder(st).Build(ctx, hours)
	if err != nil {
		return err
	}

	chunks := report.Chunk(digest.Content, cfg.Report.ChunkLimit)

	tg := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if tg.Configured() {
		if err := tg.SendChunks(ctx, chunks); err != nil {
			zap.L().Warn("telegram delivery failed", zap.Error(err))
		}
	}

	slack := notify.NewSlack(cfg.Slack.WebhookURL)
	if slack.Configured() {
		if err := slack.SendText(ctx, digest.Content); err != nil {
			zap.L().Warn("slack delivery failed", zap.Error(err))
		}
	}

	if err := st.SaveReport(ctx, model.Report{
		Date:         digest.Date,
		ArticleCount: digest.ArticleCount,
		Content:      digest.Content,
	}); err != nil {
		return err
	}

	zap.L().Info("digest delivered",
		zap.String("date", digest.Date),
		zap.Int("articles", digest.ArticleCount),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func init() {
	reportCmd.Flags().IntVar(&reportHours, "hours", 0, "digest window in hours (default from config)")
	rootCmd.AddCommand(reportCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/config"
)

var cfg *config.Config

var (
	configPath string
	dbPath     string
	runForce   bool
)

var rootCmd = &cobra.Command{
	Use:   "newswatch",
	Short: "Korean well-dying news pipeline",
	Long:  "Collects well-dying news from RSS and web sources, analyzes it with AI, scores the Korea market impact, and delivers a daily digest to Telegram and Slack.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if dbPath != "" {
			cfg.Store.Driver = "sqlite"
			cfg.Store.SQLitePath = dbPath
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runPipeline(ctx)
	},
}

// runPipeline executes collect, analyze, market, and report as one run,
// gated on the configured interval since the last completed run.
func runPipeline(ctx context.Context) error {
	if err := cfg.Validate("pipeline"); err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	last, err := st.LastRunAt(ctx)
	if err != nil {
		return err
	}
	interval := time.Duration(cfg.Run.IntervalHours) * time.Hour
	if !runForce && !last.IsZero() && time.Since(last) < interval {
		zap.L().Info("skipping run, interval not elapsed",
			zap.Time("last_run", last),
			zap.Duration("interval", interval),
		)
		return nil
	}

	if _, err := runCollect(ctx, st); err != nil {
		return err
	}
	if _, err := runAnalyze(ctx, st, cfg.Analyze.BatchSize); err != nil {
		return err
	}
	if err := runMarket(ctx, st, cfg.Market.BatchSize); err != nil {
		// Market impact is best-effort; the digest still goes out.
		zap.L().Warn("market stage failed", zap.Error(err))
	}
	if err := runReport(ctx, st, cfg.Report.Hours); err != nil {
		return err
	}

	return st.SetLastRunAt(ctx, time.Now().UTC())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (overrides store config)")
	rootCmd.Flags().BoolVar(&runForce, "force", false, "run even if the interval has not elapsed")
}

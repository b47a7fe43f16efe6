package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/analyze"
	"github.com/wda-labs/newswatch/internal/collect"
	"github.com/wda-labs/newswatch/internal/config"
	"github.com/wda-labs/newswatch/internal/resilience"
	"github.com/wda-labs/newswatch/internal/store"
	anthropicpkg "github.com/wda-labs/newswatch/pkg/anthropic"
	"github.com/wda-labs/newswatch/pkg/groq"
	"github.com/wda-labs/newswatch/pkg/translate"
)

// checkFlag validates an optional numeric flag. Zero means unset and
// defers to the config value; negatives, and values above max when max is
// positive, fail fast instead of being clamped.
func checkFlag(name string, v, max int) error {
	if v < 0 {
		return eris.Errorf("--%s must be a positive integer, got %d", name, v)
	}
	if max > 0 && v > max {
		return eris.Errorf("--%s must be between 1 and %d, got %d", name, max, v)
	}
	return nil
}

// initStore opens the configured backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.SQLitePath
	if cfg.Store.Driver == "postgres" {
		dsn = cfg.Store.DatabaseURL
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newProvider picks the analysis provider by configured keys:
// Gemini first, then Anthropic, then Groq.
func newProvider(ctx context.Context) (analyze.Provider, func(), error) {
	switch {
	case cfg.Gemini.Key != "":
		p, err := analyze.NewGeminiProvider(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case cfg.Anthropic.Key != "":
		p := analyze.NewAnthropicProvider(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		return p, func() {}, nil
	case cfg.Groq.Key != "":
		client := groq.NewClient(cfg.Groq.Key,
			groq.WithBaseURL(cfg.Groq.BaseURL),
			groq.WithModel(cfg.Groq.DeepModel))
		return analyze.NewGroqProvider(client, cfg.Groq.DeepModel), func() {}, nil
	}
	return nil, nil, eris.New("no analysis provider configured")
}

// newAnalyzer assembles the retry machine around the chosen provider.
// The returned closer releases provider resources.
func newAnalyzer(ctx context.Context) (*analyze.Analyzer, func(), error) {
	provider, closer, err := newProvider(ctx)
	if err != nil {
		return nil, nil, err
	}

	breaker := resilience.NewBreaker(cfg.Analyze.BreakerThreshold)
	breaker.OnOpen = func(failures int) {
		zap.L().Warn("analysis circuit breaker opened, remaining articles fall back to translation",
			zap.Int("consecutive_failures", failures),
		)
	}

	a := analyze.NewAnalyzer(provider, breaker, translate.NewClient(), analyze.Config{
		MaxAttempts:  cfg.Analyze.MaxAttempts,
		QuotaRetries: cfg.Analyze.QuotaRetries,
		QuotaBackoff: time.Duration(cfg.Analyze.QuotaBackoffSecs) * time.Second,
	})
	return a, closer, nil
}

// buildSources assembles Google News keyword searches plus any extra RSS
// feeds and scrape targets from the feeds file.
func buildSources() ([]collect.Source, error) {
	var sources []collect.Source
	for _, kw := range cfg.Collect.Keywords {
		sources = append(sources, collect.NewGoogleNewsSource(kw))
	}

	feeds, err := config.LoadFeeds(cfg.Collect.FeedsFile)
	if err != nil {
		return nil, err
	}
	for _, feed := range feeds.Feeds {
		sources = append(sources, collect.NewFeedSource(feed))
	}

	timeout := time.Duration(cfg.Collect.TimeoutSecs) * time.Second
	for _, sc := range feeds.Scrapes {
		sources = append(sources, collect.NewScrapeSource(sc.Name, sc.URL, sc.Selector, timeout))
	}

	if len(sources) == 0 {
		return nil, eris.New("no collection sources configured")
	}
	return sources, nil
}

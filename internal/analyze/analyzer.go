package analyze

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
	"github.com/wda-labs/newswatch/pkg/translate"
)

// Config tunes the per-article retry machine.
type Config struct {
	// MaxAttempts caps total provider calls per article. Default: 3.
	MaxAttempts int
	// QuotaRetries is how many quota rejections are retried locally before
	// giving up on the primary for this article. Default: 2.
	QuotaRetries int
	// QuotaBackoff is the base sleep after a quota rejection; up to
	// QuotaJitter is added on top. Defaults: 15s base, 5s jitter.
	QuotaBackoff time.Duration
	QuotaJitter  time.Duration
	// TransientDelay is the sleep after an overload error. Default: 5s.
	TransientDelay time.Duration
	// RetryDelay is the sleep after any other retryable error. Default: 2s.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.QuotaRetries <= 0 {
		c.QuotaRetries = 2
	}
	if c.QuotaBackoff <= 0 {
		c.QuotaBackoff = 15 * time.Second
	}
	if c.QuotaJitter < 0 {
		c.QuotaJitter = 0
	} else if c.QuotaJitter == 0 {
		c.QuotaJitter = 5 * time.Second
	}
	if c.TransientDelay <= 0 {
		c.TransientDelay = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	return c
}

// Analyzer drives one provider through the retry state machine and falls
// back to a translation-only result when the provider is unusable.
type Analyzer struct {
	provider   Provider
	breaker    *resilience.Breaker
	translator translate.Client
	cfg        Config

	// injectable for tests
	sleep   func(ctx context.Context, d time.Duration) error
	nowFunc func() time.Time
	jitter  func(max time.Duration) time.Duration
}

// NewAnalyzer builds an analyzer. The breaker is shared across articles in
// a run. The translator powers the degraded path; without a working one
// the fallback fails and articles stay unprocessed.
func NewAnalyzer(provider Provider, breaker *resilience.Breaker, translator translate.Client, cfg Config) *Analyzer {
	return &Analyzer{
		provider:   provider,
		breaker:    breaker,
		translator: translator,
		cfg:        cfg.withDefaults(),
		sleep:      sleepCtx,
		nowFunc:    time.Now,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(max)))
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Analyze produces an analysis for one article. The returned analysis is
// either a full provider result or a fallback; a nil analysis with a
// non-nil error means the article stays unprocessed.
func (a *Analyzer) Analyze(ctx context.Context, article model.Article) (*model.Analysis, error) {
	if a.breaker.Open() {
		zap.L().Warn("circuit open, using fallback",
			zap.String("link", article.Link),
		)
		return a.fallback(ctx, article)
	}

	prompt := BuildPrompt(article)
	quotaHits := 0
	var lastErr error

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		text, err := a.provider.Generate(ctx, prompt)
		if err == nil {
			var analysis *model.Analysis
			analysis, err = ParseAnalysis(text, a.nowFunc())
			if err == nil {
				analysis.Provider = a.provider.Name()
				a.breaker.RecordSuccess()
				return analysis, nil
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, eris.Wrap(lastErr, "analyze: canceled")
		}

		var delay time.Duration
		switch {
		case resilience.IsQuota(err):
			failures := a.breaker.RecordFailure()
			quotaHits++
			zap.L().Warn("provider quota exhausted",
				zap.String("provider", a.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Int("consecutive_failures", failures),
			)
			if quotaHits >= a.cfg.QuotaRetries {
				return a.fallback(ctx, article)
			}
			delay = a.cfg.QuotaBackoff + a.jitter(a.cfg.QuotaJitter)
		case resilience.IsTransient(err):
			zap.L().Warn("provider overloaded, retrying",
				zap.String("provider", a.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			delay = a.cfg.TransientDelay
		default:
			zap.L().Warn("provider error, retrying",
				zap.String("provider", a.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			delay = a.cfg.RetryDelay
		}

		if attempt < a.cfg.MaxAttempts {
			if err := a.sleep(ctx, delay); err != nil {
				return nil, eris.Wrap(lastErr, "analyze: canceled during backoff")
			}
		}
	}

	// Retry cap exhausted; degrade to the translation-only result
	// whatever the last error was.
	zap.L().Warn("provider retries exhausted, using fallback",
		zap.String("provider", a.provider.Name()),
		zap.Int("attempts", a.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
	return a.fallback(ctx, article)
}

// fallback builds the translation-only degraded result. When no translator
// is available or the translation itself fails, it returns an error and
// the article stays unprocessed for a later run.
func (a *Analyzer) fallback(ctx context.Context, article model.Article) (*model.Analysis, error) {
	if a.translator == nil {
		return nil, eris.New("analyze: fallback unavailable, no translator")
	}
	titleKo, err := a.translator.Translate(ctx, article.Title, "auto", "ko")
	if err != nil {
		return nil, eris.Wrap(err, "analyze: fallback translation")
	}
	if titleKo == "" {
		titleKo = article.Title
	}

	return &model.Analysis{
		TitleKo:    titleKo,
		Summary:    "- 상세 분석 대기 중 (번역만 제공)",
		Category:   model.CategoryOther,
		Sentiment:  model.SentimentNeutral,
		IsFallback: true,
		Provider:   "fallback",
		AnalyzedAt: a.nowFunc().UTC(),
	}, nil
}

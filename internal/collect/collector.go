package collect

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/normalize"
)

// Store is the subset of the article store the collector needs.
type Store interface {
	RecentLinks(ctx context.Context, days int) (map[string]struct{}, error)
	BanWords(ctx context.Context) ([]string, error)
	SaveArticles(ctx context.Context, articles []model.Article) (int, error)
}

// Result summarizes one collection run.
type Result struct {
	Sources       int         `json:"sources"`
	SourcesFailed int         `json:"sources_failed"`
	Saved         int         `json:"saved"`
	Filter        FilterStats `json:"filter"`
}

// Collector fetches all sources, filters the combined batch, and persists
// what survives.
type Collector struct {
	sources      []Source
	store        Store
	normalizer   *normalize.Normalizer
	lookbackDays int
	maxParallel  int
	extraBans    []string
}

// Options tunes a Collector.
type Options struct {
	LookbackDays int
	MaxParallel  int
	BanWords     []string // merged with the stored ban word list
}

// NewCollector builds a collector over the given sources.
func NewCollector(sources []Source, st Store, opts Options) *Collector {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 2
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	return &Collector{
		sources:      sources,
		store:        st,
		normalizer:   normalize.New(),
		lookbackDays: opts.LookbackDays,
		maxParallel:  opts.MaxParallel,
		extraBans:    opts.BanWords,
	}
}

// Run executes one collection pass. A failing source is logged and
// skipped; the pass fails only on store errors.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	known, err := c.store.RecentLinks(ctx, c.lookbackDays)
	if err != nil {
		return nil, eris.Wrap(err, "collect: load recent links")
	}

	banWords, err := c.store.BanWords(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect: load ban words")
	}
	banWords = append(banWords, c.extraBans...)

	result := &Result{Sources: len(c.sources)}

	var mu sync.Mutex
	var fetched []model.Article
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for _, src := range c.sources {
		g.Go(func() error {
			raws, err := src.Fetch(gctx)
			if err != nil {
				zap.L().Warn("source fetch failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // keep the remaining sources going
			}

			articles := make([]model.Article, 0, len(raws))
			for _, raw := range raws {
				articles = append(articles, c.normalizer.Normalize(raw, src.Name()))
			}

			zap.L().Debug("source fetched",
				zap.String("source", src.Name()),
				zap.Int("items", len(articles)),
			)

			mu.Lock()
			fetched = append(fetched, articles...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "collect: fetch sources")
	}
	result.SourcesFailed = failed

	filter := NewFilter(known, banWords)
	accepted, stats := filter.Apply(fetched)
	result.Filter = stats

	if len(accepted) > 0 {
		saved, err := c.store.SaveArticles(ctx, accepted)
		if err != nil {
			return nil, eris.Wrap(err, "collect: save articles")
		}
		result.Saved = saved
	}

	zap.L().Info("collection complete",
		zap.Int("sources", result.Sources),
		zap.Int("sources_failed", result.SourcesFailed),
		zap.Int("fetched", stats.Fetched),
		zap.Int("accepted", stats.Accepted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("invalid", stats.Invalid),
		zap.Int("banned", stats.Banned),
		zap.Int("saved", result.Saved),
	)
	return result, nil
}

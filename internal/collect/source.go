// Package collect fetches, validates, and deduplicates news articles.
package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"github.com/wda-labs/newswatch/internal/normalize"
)

// Source produces raw articles from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]normalize.Raw, error)
}

// GoogleNewsSource fetches Google News RSS results for a single keyword.
type GoogleNewsSource struct {
	Keyword string
	parser  *gofeed.Parser
}

// NewGoogleNewsSource builds an RSS source for a search keyword.
func NewGoogleNewsSource(keyword string) *GoogleNewsSource {
	return &GoogleNewsSource{Keyword: keyword, parser: gofeed.NewParser()}
}

func (s *GoogleNewsSource) Name() string {
	return "google-news:" + s.Keyword
}

func (s *GoogleNewsSource) searchURL() string {
	return fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko",
		url.QueryEscape(s.Keyword),
	)
}

func (s *GoogleNewsSource) Fetch(ctx context.Context) ([]normalize.Raw, error) {
	feed, err := s.parser.ParseURLWithContext(s.searchURL(), ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse feed for %q", s.Keyword)
	}

	items := make([]normalize.Raw, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, normalize.Raw{
			Title:       it.Title,
			Link:        it.Link,
			Source:      googlePublisher(it.Title),
			Summary:     it.Description,
			PublishedAt: it.Published,
		})
	}
	return items, nil
}

// googlePublisher extracts the publisher name from a Google News headline,
// which carries it as a trailing " - Publisher" segment. Returns "" when
// no such segment exists, deferring to the source name downstream.
func googlePublisher(title string) string {
	if i := strings.LastIndex(title, " - "); i >= 0 {
		return strings.TrimSpace(title[i+3:])
	}
	return ""
}

// FeedSource fetches a plain RSS/Atom feed URL from the feeds file.
type FeedSource struct {
	URL    string
	parser *gofeed.Parser
}

// NewFeedSource builds a source for a raw feed URL.
func NewFeedSource(feedURL string) *FeedSource {
	return &FeedSource{URL: feedURL, parser: gofeed.NewParser()}
}

func (s *FeedSource) Name() string {
	return "feed:" + s.URL
}

func (s *FeedSource) Fetch(ctx context.Context) ([]normalize.Raw, error) {
	feed, err := s.parser.ParseURLWithContext(s.URL, ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse feed %s", s.URL)
	}

	items := make([]normalize.Raw, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, normalize.Raw{
			Title:       it.Title,
			Link:        it.Link,
			Source:      feed.Title,
			Summary:     it.Description,
			PublishedAt: it.Published,
		})
	}
	return items, nil
}

// ScrapeSource extracts article links from a listing page with CSS selectors.
type ScrapeSource struct {
	PageName     string
	PageURL      string
	ItemSelector string
	http         *http.Client
}

// NewScrapeSource builds a scraping source for a listing page. itemSelector
// must match anchor elements whose text is the article title.
func NewScrapeSource(name, pageURL, itemSelector string, timeout time.Duration) *ScrapeSource {
	return &ScrapeSource{
		PageName:     name,
		PageURL:      pageURL,
		ItemSelector: itemSelector,
		http:         &http.Client{Timeout: timeout},
	}
}

func (s *ScrapeSource) Name() string {
	return "scrape:" + s.PageName
}

func (s *ScrapeSource) Fetch(ctx context.Context) ([]normalize.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PageURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: build request for %s", s.PageURL)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newswatch/1.0)")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: fetch %s", s.PageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("collect: fetch %s: status %d", s.PageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse html from %s", s.PageURL)
	}

	base, err := url.Parse(s.PageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: parse base url %s", s.PageURL)
	}

	var items []normalize.Raw
	doc.Find(s.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		link, err := base.Parse(href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}
		items = append(items, normalize.Raw{
			Title:  title,
			Link:   link.String(),
			Source: s.PageName,
		})
	})
	return items, nil
}

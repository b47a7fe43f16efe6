// Package normalize converts raw feed items into canonical articles.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/wda-labs/newswatch/internal/model"
)

// Raw is an article as fetched from a source, before any cleanup.
type Raw struct {
	Title       string
	Link        string
	Source      string
	Summary     string
	PublishedAt string
}

// dateLayouts are tried in order when parsing a published timestamp.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts raw items into model.Article values. The zero value
// is usable; nowFunc is injectable for tests.
type Normalizer struct {
	nowFunc func() time.Time
}

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{nowFunc: time.Now}
}

// WithNow returns a Normalizer with an injected clock.
func WithNow(now func() time.Time) *Normalizer {
	return &Normalizer{nowFunc: now}
}

// Normalize trims fields, derives the content hash, and parses the
// published date. It never fails: an unparseable date becomes the current
// time and an empty source becomes fallbackSource.
func (n *Normalizer) Normalize(raw Raw, fallbackSource string) model.Article {
	source := strings.TrimSpace(raw.Source)
	if source == "" {
		source = fallbackSource
	}

	link := strings.TrimSpace(raw.Link)
	return model.Article{
		Title:       strings.TrimSpace(raw.Title),
		Link:        link,
		Source:      source,
		Summary:     strings.TrimSpace(raw.Summary),
		ContentHash: ContentHash(link),
		PublishedAt: n.ParseDate(raw.PublishedAt),
		CreatedAt:   n.nowFunc().UTC(),
	}
}

// ParseDate converts a timestamp in any supported layout to UTC. Unknown
// layouts and empty strings fall back to the current time.
func (n *Normalizer) ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return n.nowFunc().UTC()
}

// ContentHash derives the stable dedup hash for a link.
func ContentHash(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}

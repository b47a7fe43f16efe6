package collect

import (
	"strings"

	"github.com/wda-labs/newswatch/internal/model"
)

// FilterStats tallies a filtered batch by outcome. Ban-word rejections
// count as Invalid; Banned breaks out that subset.
type FilterStats struct {
	Fetched    int `json:"fetched"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Banned     int `json:"banned"`
}

// Filter rejects invalid, banned, and duplicate articles. The known-links
// set grows as articles are accepted, so duplicates inside a single batch
// are caught too.
type Filter struct {
	known    map[string]struct{}
	banWords []string
}

// NewFilter seeds a filter with links already stored (from the lookback
// window) and the lowercase ban word list.
func NewFilter(knownLinks map[string]struct{}, banWords []string) *Filter {
	if knownLinks == nil {
		knownLinks = make(map[string]struct{})
	}
	lowered := make([]string, 0, len(banWords))
	for _, w := range banWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Filter{known: knownLinks, banWords: lowered}
}

// Apply partitions a batch into accepted articles and rejection counts.
func (f *Filter) Apply(articles []model.Article) ([]model.Article, FilterStats) {
	stats := FilterStats{Fetched: len(articles)}
	accepted := make([]model.Article, 0, len(articles))

	for _, a := range articles {
		switch {
		case a.Link == "" || a.Title == "":
			stats.Invalid++
		case f.banned(a):
			stats.Invalid++
			stats.Banned++
		case f.seen(a.Link):
			stats.Duplicates++
		default:
			f.known[a.Link] = struct{}{}
			accepted = append(accepted, a)
			stats.Accepted++
		}
	}
	return accepted, stats
}

func (f *Filter) seen(link string) bool {
	_, ok := f.known[link]
	return ok
}

func (f *Filter) banned(a model.Article) bool {
	if len(f.banWords) == 0 {
		return false
	}
	title := strings.ToLower(a.Title)
	for _, w := range f.banWords {
		if strings.Contains(title, w) {
			return true
		}
	}
	return false
}

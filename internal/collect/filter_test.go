package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wda-labs/newswatch/internal/model"
)

func art(title, link string) model.Article {
	return model.Article{Title: title, Link: link}
}

func TestFilterRejectsInvalid(t *testing.T) {
	f := NewFilter(nil, nil)

	accepted, stats := f.Apply([]model.Article{
		art("", "https://example.com/a"),
		art("no link", ""),
		art("ok", "https://example.com/b"),
	})

	assert.Len(t, accepted, 1)
	assert.Equal(t, 2, stats.Invalid)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 3, stats.Fetched)
}

func TestFilterRejectsBanWordsInTitleOnly(t *testing.T) {
	f := NewFilter(nil, []string{"부고", " SPAM "})

	accepted, stats := f.Apply([]model.Article{
		art("원로 배우 부고 소식", "https://example.com/a"),
		{Title: "spam offer", Link: "https://example.com/b"},
		{Title: "clean title", Link: "https://example.com/c", Summary: "this is spam content"},
		art("fine", "https://example.com/d"),
	})

	require.Len(t, accepted, 2)
	assert.Equal(t, "clean title", accepted[0].Title, "ban words in the summary do not reject")
	assert.Equal(t, "fine", accepted[1].Title)
	assert.Equal(t, 2, stats.Banned)
	assert.Equal(t, 2, stats.Invalid, "banned counts toward invalid")
}

func TestFilterBanWordCaseInsensitive(t *testing.T) {
	f := NewFilter(nil, []string{"casino"})

	_, stats := f.Apply([]model.Article{art("Best CASINO deals", "https://example.com/a")})
	assert.Equal(t, 1, stats.Banned)
}

func TestFilterRejectsKnownLinks(t *testing.T) {
	known := map[string]struct{}{"https://example.com/seen": {}}
	f := NewFilter(known, nil)

	accepted, stats := f.Apply([]model.Article{
		art("seen before", "https://example.com/seen"),
		art("new", "https://example.com/new"),
	})

	assert.Len(t, accepted, 1)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestFilterCatchesIntraBatchDuplicates(t *testing.T) {
	f := NewFilter(nil, nil)

	accepted, stats := f.Apply([]model.Article{
		art("first", "https://example.com/a"),
		art("same link again", "https://example.com/a"),
	})

	assert.Len(t, accepted, 1)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestFilterCountsReasonsSeparately(t *testing.T) {
	known := map[string]struct{}{"https://example.com/dup": {}}
	f := NewFilter(known, []string{"광고"})

	_, stats := f.Apply([]model.Article{
		art("dup", "https://example.com/dup"),
		art("", "https://example.com/x"),
		art("광고 포함", "https://example.com/y"),
		art("good", "https://example.com/z"),
	})

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 2, stats.Invalid, "missing-field and ban-word rejects")
	assert.Equal(t, 1, stats.Banned)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 4, stats.Fetched)
}

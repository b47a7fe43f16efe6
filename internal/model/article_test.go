package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownCategory(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, KnownCategory(c), c)
	}
	assert.False(t, KnownCategory("스포츠"))
	assert.False(t, KnownCategory(""))
}

func TestKnownSentiment(t *testing.T) {
	assert.True(t, KnownSentiment(SentimentPositive))
	assert.True(t, KnownSentiment(SentimentNegative))
	assert.True(t, KnownSentiment(SentimentNeutral))
	assert.False(t, KnownSentiment("애매"))
	assert.False(t, KnownSentiment(""))
}

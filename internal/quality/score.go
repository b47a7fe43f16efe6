// Package quality scores analysis results for digest ranking.
package quality

import (
	"strings"

	"github.com/wda-labs/newswatch/internal/model"
)

const (
	titleWeight     = 30
	fullBulletScore = 40
	someBulletScore = 20
	categoryWeight  = 15
	sentimentWeight = 15

	minTitleLen = 5
	fullBullets = 3
)

// Score grades an analysis 0-100 on completeness. Deterministic, no IO.
func Score(a model.Analysis) int {
	score := 0

	title := strings.TrimSpace(a.TitleKo)
	if title != "" && len([]rune(title)) > minTitleLen {
		score += titleWeight
	}

	switch n := countBullets(a.Summary); {
	case n >= fullBullets:
		score += fullBulletScore
	case n >= 1:
		score += someBulletScore
	}

	// Presence is what scores here; mapping stray values into the known
	// sets is the parser's job.
	if strings.TrimSpace(a.Category) != "" {
		score += categoryWeight
	}
	if strings.TrimSpace(string(a.Sentiment)) != "" {
		score += sentimentWeight
	}

	if score > 100 {
		score = 100
	}
	return score
}

// countBullets counts summary lines that read as list items.
func countBullets(summary string) int {
	n := 0
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "• ") {
			n++
		}
	}
	return n
}

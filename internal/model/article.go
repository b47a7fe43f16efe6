package model

import "time"

// Article is a single collected news item.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
	ContentHash string    `json:"content_hash"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`

	Processed bool          `json:"processed"`
	Analysis  *Analysis     `json:"analysis,omitempty"`
	Market    *MarketImpact `json:"market,omitempty"`
}

// Sentiment classifies the tone of an article.
type Sentiment string

const (
	SentimentPositive Sentiment = "긍정"
	SentimentNegative Sentiment = "부정"
	SentimentNeutral  Sentiment = "중립"
)

// Categories an analysis may land in. CategoryOther absorbs anything
// the provider returns outside the known set.
const (
	CategoryLawPolicy   = "법률/정책"
	CategoryMedical     = "의료"
	CategorySocialEthic = "사회/윤리"
	CategoryTechIndust  = "기술/산업"
	CategoryResearch    = "연구"
	CategoryPersonal    = "개인 스토리"
	CategoryOther       = "기타"
)

// Categories lists every valid analysis category.
func Categories() []string {
	return []string{
		CategoryLawPolicy,
		CategoryMedical,
		CategorySocialEthic,
		CategoryTechIndust,
		CategoryResearch,
		CategoryPersonal,
		CategoryOther,
	}
}

// KnownCategory reports whether c is one of the valid categories.
func KnownCategory(c string) bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// KnownSentiment reports whether s is one of the valid sentiments.
func KnownSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Analysis is the AI-produced enrichment for an article.
type Analysis struct {
	TitleKo      string    `json:"title_ko"`
	Summary      string    `json:"summary"`
	Category     string    `json:"category"`
	Sentiment    Sentiment `json:"sentiment"`
	QualityScore int       `json:"quality_score"`
	IsFallback   bool      `json:"is_fallback"`
	Provider     string    `json:"provider,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// ImpactLevel grades expected Korean market impact.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "높음"
	ImpactMedium ImpactLevel = "중간"
	ImpactLow    ImpactLevel = "낮음"
	ImpactNone   ImpactLevel = "없음"
)

// MarketImpact is the Korea market assessment for an article.
type MarketImpact struct {
	Impact     ImpactLevel `json:"impact"`
	Sectors    []string    `json:"sectors"`
	Tickers    []string    `json:"tickers"`
	Reason     string      `json:"reason"`
	RuleBased  bool        `json:"rule_based"`
	AssessedAt time.Time   `json:"assessed_at"`
}

// Stats is an aggregate snapshot of the article store.
type Stats struct {
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Unprocessed int            `json:"unprocessed"`
	Fallback    int            `json:"fallback"`
	Today       int            `json:"today"`
	ByCategory  map[string]int `json:"by_category"`
	BySentiment map[string]int `json:"by_sentiment"`
	AvgQuality  float64        `json:"avg_quality"`
}

// Report is a persisted daily digest.
type Report struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	ArticleCount int       `json:"article_count"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

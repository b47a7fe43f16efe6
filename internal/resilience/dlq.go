package resilience

import "time"

// FailedArticle records an article that exhausted its analysis attempts.
// Entries are persisted so a later run can inspect or replay them.
type FailedArticle struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	Stage     string    `json:"stage"` // "collect", "analyze", "market", "report"
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // from Classify
	FailedAt  time.Time `json:"failed_at"`
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	link         TEXT NOT NULL UNIQUE,
	source       TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	processed    INTEGER NOT NULL DEFAULT 0,
	analysis     TEXT,
	market       TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);

CREATE TABLE IF NOT EXISTS ban_words (
	word TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL UNIQUE,
	article_count INTEGER NOT NULL DEFAULT 0,
	content       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS failed_articles (
	id         TEXT PRIMARY KEY,
	article_id TEXT,
	link       TEXT,
	title      TEXT,
	stage      TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'transient',
	failed_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_failed_articles_stage ON failed_articles(stage);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

const articleColumns = `id, title, link, source, summary, content_hash, published_at, created_at, processed, analysis, market`

func (s *SQLiteStore) SaveArticles(ctx context.Context, articles []model.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	articles = prepareArticles(articles)

	saved := 0
	for start := 0; start < len(articles); start += saveChunkSize {
		end := start + saveChunkSize
		if end > len(articles) {
			end = len(articles)
		}
		chunk := articles[start:end]

		n, err := s.insertChunk(ctx, chunk)
		if err != nil {
			zap.L().Warn("sqlite: chunk insert failed, retrying rows individually", zap.Error(err))
			n = s.insertRows(ctx, chunk)
		}
		saved += n
	}
	return saved, nil
}

func (s *SQLiteStore) insertChunk(ctx context.Context, chunk []model.Article) (int, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO articles (id, title, link, source, summary, content_hash, published_at, created_at, processed) VALUES `)

	args := make([]any, 0, len(chunk)*8)
	for i, a := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, 0)")
		args = append(args, a.ID, a.Title, a.Link, a.Source, a.Summary, a.ContentHash, a.PublishedAt, a.CreatedAt)
	}
	sb.WriteString(` ON CONFLICT (link) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert articles")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) insertRows(ctx context.Context, chunk []model.Article) int {
	saved := 0
	for _, a := range chunk {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO articles (id, title, link, source, summary, content_hash, published_at, created_at, processed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0) ON CONFLICT (link) DO NOTHING`,
			a.ID, a.Title, a.Link, a.Source, a.Summary, a.ContentHash, a.PublishedAt, a.CreatedAt,
		)
		if err != nil {
			zap.L().Warn("sqlite: skip article",
				zap.String("link", a.Link),
				zap.Error(err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			saved += int(n)
		}
	}
	return saved
}

func (s *SQLiteStore) RecentLinks(ctx context.Context, days int) (map[string]struct{}, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx,
		`SELECT link FROM articles WHERE created_at >= ?`, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent links")
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		links[link] = struct{}{}
	}
	return links, eris.Wrap(rows.Err(), "sqlite: recent links iterate")
}

func (s *SQLiteStore) BanWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM ban_words`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: ban words")
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ban word")
		}
		words = append(words, w)
	}
	return words, eris.Wrap(rows.Err(), "sqlite: ban words iterate")
}

func (s *SQLiteStore) Unprocessed(ctx context.Context, limit int) ([]model.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE processed = 0 ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unprocessed")
	}
	defer rows.Close()
	return collectArticles(rows)
}

func (s *SQLiteStore) UpdateAnalysis(ctx context.Context, id string, analysis model.Analysis) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET analysis = ?, processed = 1 WHERE id = ?`,
		string(analysisJSON), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update analysis %s", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) UpdateMarket(ctx context.Context, id string, market model.MarketImpact) error {
	marketJSON, err := json.Marshal(market)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal market impact")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET market = ? WHERE id = ?`,
		string(marketJSON), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update market %s", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) ProcessedSince(ctx context.Context, since time.Time) ([]model.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE processed = 1 AND created_at >= ?
		 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: processed since")
	}
	defer rows.Close()
	return collectArticles(rows)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByCategory:  make(map[string]int),
		BySentiment: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count articles")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE processed = 1`).Scan(&stats.Processed); err != nil {
		return nil, eris.Wrap(err, "sqlite: count processed")
	}
	stats.Unprocessed = stats.Total - stats.Processed

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE created_at >= ?`, dayStart,
	).Scan(&stats.Today); err != nil {
		return nil, eris.Wrap(err, "sqlite: count today")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis FROM articles WHERE processed = 1 AND analysis IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		var a model.Analysis
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: analyses iterate")
	}

	tallyAnalyses(stats, analyses)
	return stats, nil
}

func (s *SQLiteStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

func (s *SQLiteStore) LastRunAt(ctx context.Context) (time.Time, error) {
	value, err := s.Setting(ctx, settingLastRun)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: parse last run time")
	}
	return t, nil
}

func (s *SQLiteStore) SetLastRunAt(ctx context.Context, t time.Time) error {
	return s.SetSetting(ctx, settingLastRun, t.UTC().Format(time.RFC3339))
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report model.Report) error {
	if report.ID == "" {
		report.ID = newID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, date, article_count, content, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (date) DO UPDATE SET article_count = excluded.article_count,
		   content = excluded.content, created_at = excluded.created_at`,
		report.ID, report.Date, report.ArticleCount, report.Content, report.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: save report")
}

func (s *SQLiteStore) LogFailure(ctx context.Context, failure resilience.FailedArticle) error {
	if failure.ID == "" {
		failure.ID = newID()
	}
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_articles (id, article_id, link, title, stage, error, error_type, failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		failure.ID, failure.ArticleID, failure.Link, failure.Title,
		failure.Stage, failure.Error, failure.ErrorType, failure.FailedAt,
	)
	return eris.Wrap(err, "sqlite: log failure")
}

func (s *SQLiteStore) FailureCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_articles`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count failures")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArticle(row scannable) (*model.Article, error) {
	var a model.Article
	var analysisJSON, marketJSON sql.NullString

	err := row.Scan(&a.ID, &a.Title, &a.Link, &a.Source, &a.Summary, &a.ContentHash,
		&a.PublishedAt, &a.CreatedAt, &a.Processed, &analysisJSON, &marketJSON)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan article")
	}

	if analysisJSON.Valid && analysisJSON.String != "" {
		a.Analysis = &model.Analysis{}
		if err := json.Unmarshal([]byte(analysisJSON.String), a.Analysis); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
		}
	}
	if marketJSON.Valid && marketJSON.String != "" {
		a.Market = &model.MarketImpact{}
		if err := json.Unmarshal([]byte(marketJSON.String), a.Market); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal market impact")
		}
	}
	return &a, nil
}

func collectArticles(rows *sql.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "sqlite: articles iterate")
}
